package mods

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// LoadModDefs reads a modification definitions file into the dictionary.
//
// Each non-comment line holds tab-separated fields:
//
//	symbol  mass  target_residues  type  [mass_correction_tag]
//
// The mass field may also name a mass-correction tag. A leading header line
// is skipped.
func LoadModDefs(path string, dict *Dictionary) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open modification definitions: %w", err)
	}
	defer f.Close()

	return ParseModDefs(f, dict)
}

// ParseModDefs parses modification definitions from r. It returns the
// number of definitions added.
func ParseModDefs(r io.Reader, dict *Dictionary) (int, error) {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	added := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			if strings.Contains(line, ",") {
				fields = strings.Split(line, ",")
			}
		}
		if len(fields) < 4 {
			return added, fmt.Errorf("line %d: expected at least 4 fields, found %d", lineNum, len(fields))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		m, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			tagMass, ok := dict.Tags().Mass(fields[1])
			if !ok {
				if added == 0 && isHeader(fields) {
					continue
				}
				return added, fmt.Errorf("line %d: invalid mass %q", lineNum, fields[1])
			}
			m = tagMass
			if len(fields) < 5 || fields[4] == "" {
				fields = append(fields[:4], fields[1])
			}
		}

		modType, err := ParseType(fields[3])
		if err != nil {
			return added, fmt.Errorf("line %d: %w", lineNum, err)
		}

		def := Definition{
			Mass:           m,
			TargetResidues: strings.ToUpper(fields[2]),
			Type:           modType,
		}
		if fields[2] == "" || fields[2] == "*" {
			def.TargetResidues = ""
		}
		if sym, _ := utf8.DecodeRuneInString(fields[0]); sym != utf8.RuneError && fields[0] != string(NoSymbol) {
			def.Symbol = sym
		}
		if len(fields) >= 5 {
			def.Tag = fields[4]
		}

		if _, err := dict.Add(def); err != nil {
			return added, fmt.Errorf("line %d: %w", lineNum, err)
		}
		added++
	}

	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("read modification definitions: %w", err)
	}

	return added, nil
}

func isHeader(fields []string) bool {
	return strings.Contains(strings.ToLower(strings.Join(fields, " ")), "mass")
}
