package moda

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-phrp/internal/mods"
)

// LoadParams reads the static modifications of a MODa parameter file into
// dict. It returns the number of modifications added.
func LoadParams(path string, dict *mods.Dictionary) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open moda parameter file: %w", err)
	}
	defer f.Close()

	return ParseParams(f, dict)
}

// ParseParams parses lines of the form
//
//	ADD=<residue>, <mass>
//
// Residue may be NTerm or CTerm for terminal modifications. Other keys are
// ignored; MODa discovers dynamic modifications itself and reports them as
// mass offsets inside the peptide.
func ParseParams(r io.Reader, dict *mods.Dictionary) (int, error) {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	added := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "add") {
			continue
		}

		residue, massText, ok := strings.Cut(value, ",")
		if !ok {
			return added, fmt.Errorf("line %d: expected <residue>, <mass>", lineNum)
		}
		m, err := strconv.ParseFloat(strings.TrimSpace(massText), 64)
		if err != nil {
			return added, fmt.Errorf("line %d: invalid mass %q", lineNum, strings.TrimSpace(massText))
		}

		target, err := targetResidues(strings.TrimSpace(residue))
		if err != nil {
			return added, fmt.Errorf("line %d: %w", lineNum, err)
		}

		if _, err := dict.Add(mods.Definition{Mass: m, TargetResidues: target, Type: mods.Static}); err != nil {
			return added, fmt.Errorf("line %d: %w", lineNum, err)
		}
		added++
	}

	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("read moda parameter file: %w", err)
	}
	return added, nil
}

func targetResidues(residue string) (string, error) {
	switch strings.ToLower(residue) {
	case "nterm":
		return string(mods.PeptideNTermMarker), nil
	case "cterm":
		return string(mods.PeptideCTermMarker), nil
	}
	residue = strings.ToUpper(residue)
	if len(residue) != 1 || residue[0] < 'A' || residue[0] > 'Z' {
		return "", fmt.Errorf("invalid residue %q", residue)
	}
	return residue, nil
}
