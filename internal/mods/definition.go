// Package mods provides the modification dictionary: the registry that maps
// modification masses and target residues to display symbols and
// mass-correction tags.
package mods

import (
	"fmt"
	"strings"
)

// AppliesTo describes where a modification may be placed.
type AppliesTo int

const (
	Residue AppliesTo = iota
	ProteinNTerminus
	ProteinCTerminus
	PeptideNTerminus
	PeptideCTerminus
)

// Type is the modification type.
type Type int

const (
	Static Type = iota
	Dynamic
	Isotopic
	ProteinTerminusStatic
)

// Residue markers for terminal modifications in target residue lists.
const (
	ProteinNTermMarker = '['
	ProteinCTermMarker = ']'
	PeptideNTermMarker = '<'
	PeptideCTermMarker = '>'
)

// NoSymbol is written for definitions without a display symbol.
const NoSymbol = '-'

// Terminus is the terminal state of a residue carrying a modification.
type Terminus int

const (
	NotTerminal Terminus = iota
	PeptideNTerm
	PeptideCTerm
	ProteinNTerm
	ProteinCTerm
)

// IsNTerminal reports whether t is a peptide or protein N-terminus.
func (t Terminus) IsNTerminal() bool { return t == PeptideNTerm || t == ProteinNTerm }

// IsCTerminal reports whether t is a peptide or protein C-terminus.
func (t Terminus) IsCTerminal() bool { return t == PeptideCTerm || t == ProteinCTerm }

// Code returns the single-letter type code used in definition files.
func (t Type) Code() string {
	switch t {
	case Static:
		return "S"
	case Dynamic:
		return "D"
	case Isotopic:
		return "I"
	case ProteinTerminusStatic:
		return "P"
	}
	return "U"
}

// ParseType converts a type code (S, D, I, P, T) or word to a Type.
func ParseType(code string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "S", "STATIC", "FIX", "FIXED":
		return Static, nil
	case "D", "DYNAMIC", "OPT", "VARIABLE":
		return Dynamic, nil
	case "I", "ISOTOPIC":
		return Isotopic, nil
	case "P", "T", "PROTEINTERMINUSSTATIC":
		return ProteinTerminusStatic, nil
	}
	return Dynamic, fmt.Errorf("unknown modification type %q", code)
}

// Definition is a single modification known to the dictionary.
type Definition struct {
	Mass           float64
	TargetResidues string // empty means any residue
	AppliesTo      AppliesTo
	Type           Type
	Symbol         rune // 0 for static modifications
	Tag            string
	Name           string // tool-specific text used in raw peptide notation

	Occurrences int
	AutoDefined bool
}

// IsStatic reports whether the modification is applied without a symbol.
func (d *Definition) IsStatic() bool {
	return d.Type == Static || d.Type == ProteinTerminusStatic
}

// IsTerminal reports whether the modification is bound to a terminus.
func (d *Definition) IsTerminal() bool {
	return d.AppliesTo != Residue
}

// IsNTerminal reports whether the modification targets a peptide or protein N-terminus.
func (d *Definition) IsNTerminal() bool {
	return d.AppliesTo == PeptideNTerminus || d.AppliesTo == ProteinNTerminus
}

// IsCTerminal reports whether the modification targets a peptide or protein C-terminus.
func (d *Definition) IsCTerminal() bool {
	return d.AppliesTo == PeptideCTerminus || d.AppliesTo == ProteinCTerminus
}

// residueLetters returns the target residues without terminus markers.
func (d *Definition) residueLetters() string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ProteinNTermMarker, ProteinCTermMarker, PeptideNTermMarker, PeptideCTermMarker:
			return -1
		}
		return r
	}, d.TargetResidues)
}

// Matches reports whether the definition can be applied to residue at the
// given terminal state. A zero residue matches any target.
func (d *Definition) Matches(residue byte, term Terminus) bool {
	switch d.AppliesTo {
	case PeptideNTerminus:
		if !term.IsNTerminal() {
			return false
		}
	case PeptideCTerminus:
		if !term.IsCTerminal() {
			return false
		}
	case ProteinNTerminus:
		if term != ProteinNTerm {
			return false
		}
	case ProteinCTerminus:
		if term != ProteinCTerm {
			return false
		}
	}

	letters := d.residueLetters()
	if letters == "" || residue == 0 {
		return true
	}
	return strings.IndexByte(letters, residue) >= 0
}

// SymbolString returns the display symbol, or "-" for static modifications.
func (d *Definition) SymbolString() string {
	if d.Symbol == 0 {
		return string(NoSymbol)
	}
	return string(d.Symbol)
}

// appliesToFromResidues derives the placement from terminus markers.
func appliesToFromResidues(residues string) AppliesTo {
	switch {
	case strings.ContainsRune(residues, ProteinNTermMarker):
		return ProteinNTerminus
	case strings.ContainsRune(residues, ProteinCTermMarker):
		return ProteinCTerminus
	case strings.ContainsRune(residues, PeptideNTermMarker):
		return PeptideNTerminus
	case strings.ContainsRune(residues, PeptideCTermMarker):
		return PeptideCTerminus
	}
	return Residue
}
