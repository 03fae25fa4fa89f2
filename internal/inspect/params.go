package inspect

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-phrp/internal/mods"
)

// LoadParams reads the modification lines of an InSpecT input file into
// dict. It returns the number of modifications added.
func LoadParams(path string, dict *mods.Dictionary) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open inspect parameter file: %w", err)
	}
	defer f.Close()

	return ParseParams(f, dict)
}

// ParseParams parses InSpecT parameter lines of the form
//
//	mod,<mass>,<residues>[,<type>[,<name>]]
//
// where type is fix, opt, nterminal or cterminal (opt by default). InSpecT
// writes a modification as its name truncated to four characters, or as
// the signed integer mass when no name is given.
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

		fields := strings.Split(line, ",")
		if !strings.EqualFold(strings.TrimSpace(fields[0]), "mod") {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 3 {
			return added, fmt.Errorf("line %d: mod line needs mass and residues", lineNum)
		}

		m, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return added, fmt.Errorf("line %d: invalid mass %q", lineNum, fields[1])
		}

		residues := strings.ToUpper(fields[2])
		if residues == "*" {
			residues = ""
		}

		def := mods.Definition{Mass: m, TargetResidues: residues, Type: mods.Dynamic}
		kind := ""
		if len(fields) > 3 {
			kind = strings.ToLower(fields[3])
		}
		switch kind {
		case "", "opt":
		case "fix":
			def.Type = mods.Static
		case "nterminal":
			def.TargetResidues = string(mods.PeptideNTermMarker) + residues
		case "cterminal":
			def.TargetResidues = string(mods.PeptideCTermMarker) + residues
		default:
			return added, fmt.Errorf("line %d: unknown modification type %q", lineNum, fields[3])
		}

		def.Name = massName(m)
		if len(fields) > 4 && fields[4] != "" {
			def.Name = strings.ToLower(fields[4])
			if len(def.Name) > 4 {
				def.Name = def.Name[:4]
			}
		}

		if _, err := dict.Add(def); err != nil {
			return added, fmt.Errorf("line %d: %w", lineNum, err)
		}
		added++
	}

	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("read inspect parameter file: %w", err)
	}
	return added, nil
}

// massName formats a mass the way InSpecT prints unnamed modifications.
func massName(m float64) string {
	v := int(math.Round(m))
	if v < 0 {
		return strconv.Itoa(v)
	}
	return "+" + strconv.Itoa(v)
}
