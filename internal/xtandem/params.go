package xtandem

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/inodb/vibe-phrp/internal/mods"
)

// Parameter note labels that define modifications. Additional static and
// potential mass lists are numbered, as in "residue, modification mass 1".
const (
	labelStaticMods       = "residue, modification mass"
	labelPotentialMods    = "residue, potential modification mass"
	labelRefinePotential  = "refine, potential modification mass"
	labelProteinNTermMass = "protein, N-terminal residue modification mass"
	labelProteinCTermMass = "protein, C-terminal residue modification mass"
)

// LoadParams reads modification definitions from an X!Tandem input
// parameter file, or from the parameter group of a result file.
func LoadParams(path string, dict *mods.Dictionary) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open xtandem parameter file: %w", err)
	}
	defer f.Close()

	return ParseParams(f, dict)
}

// ParseParams reads every <note> element and adds the modifications named
// by the modification labels. Mass lists have the form
// "57.021464@C,15.994915@M"; '[' and ']' denote the peptide termini.
func ParseParams(r io.Reader, dict *mods.Dictionary) (int, error) {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	added := 0
	for {
		t, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return added, fmt.Errorf("read xtandem parameters: %w", err)
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "note" {
			continue
		}
		var note xmlNote
		if err := d.DecodeElement(&note, &start); err != nil {
			return added, fmt.Errorf("decode note: %w", err)
		}

		n, err := addNote(dict, strings.TrimSpace(note.Label), strings.TrimSpace(note.Text))
		added += n
		if err != nil {
			return added, fmt.Errorf("note %q: %w", note.Label, err)
		}
	}
	return added, nil
}

func addNote(dict *mods.Dictionary, label, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	switch {
	case label == labelStaticMods || strings.HasPrefix(label, labelStaticMods+" "):
		return addMassList(dict, text, mods.Static)
	case label == labelPotentialMods || label == labelRefinePotential ||
		strings.HasPrefix(label, labelPotentialMods+" "):
		return addMassList(dict, text, mods.Dynamic)
	case label == labelProteinNTermMass:
		return addProteinTerminal(dict, text, mods.ProteinNTermMarker)
	case label == labelProteinCTermMass:
		return addProteinTerminal(dict, text, mods.ProteinCTermMarker)
	}
	return 0, nil
}

func addMassList(dict *mods.Dictionary, text string, typ mods.Type) (int, error) {
	added := 0
	for _, item := range strings.Split(text, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		massText, residue, ok := strings.Cut(item, "@")
		if !ok || residue == "" {
			return added, fmt.Errorf("expected <mass>@<residue>, got %q", item)
		}
		m, err := strconv.ParseFloat(strings.TrimSpace(massText), 64)
		if err != nil {
			return added, fmt.Errorf("invalid mass %q", massText)
		}
		if m == 0 {
			continue
		}
		if _, err := dict.Add(mods.Definition{Mass: m, TargetResidues: targetResidues(residue), Type: typ}); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func addProteinTerminal(dict *mods.Dictionary, text string, marker rune) (int, error) {
	m, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mass %q", text)
	}
	if m == 0 {
		return 0, nil
	}
	def := mods.Definition{Mass: m, TargetResidues: string(marker), Type: mods.ProteinTerminusStatic}
	if _, err := dict.Add(def); err != nil {
		return 0, err
	}
	return 1, nil
}

// targetResidues maps X!Tandem terminus notation to modification markers.
func targetResidues(residue string) string {
	residue = strings.ToUpper(strings.TrimSpace(residue))
	switch residue {
	case "[":
		return string(mods.PeptideNTermMarker)
	case "]":
		return string(mods.PeptideCTermMarker)
	}
	return residue
}
