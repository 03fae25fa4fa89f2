package mods

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultSymbols are assigned in order to dynamic modifications that do not
// specify their own symbol.
var DefaultSymbols = []rune("*#@$&!%~†‡¤º^`×÷=ø¢")

// overflowSymbolStart is the first rune handed out once DefaultSymbols is exhausted.
const overflowSymbolStart = '①'

// ErrSymbolInUse is returned when a dynamic modification requests a symbol
// already held by another dynamic modification.
var ErrSymbolInUse = errors.New("modification symbol already in use")

// Tolerance returns the mass tolerance implied by comparing masses at
// precision decimal digits.
func Tolerance(precision int) float64 {
	return 0.5*math.Pow(10, -float64(precision)) + 1e-9
}

// Dictionary holds all modification definitions of a run. Definitions are
// never removed; lookups that miss create new dynamic definitions.
type Dictionary struct {
	defs      []*Definition
	tags      *TagTable
	symbols   []rune
	autoCount int
}

// NewDictionary creates an empty dictionary. A nil tag table uses DefaultTags.
func NewDictionary(tags *TagTable) *Dictionary {
	if tags == nil {
		tags = DefaultTags()
	}
	return &Dictionary{
		tags:    tags,
		symbols: DefaultSymbols,
	}
}

// Tags returns the mass-correction tag table.
func (d *Dictionary) Tags() *TagTable {
	return d.tags
}

// Add registers a definition and returns the stored copy. Dynamic and
// isotopic definitions without a symbol get the next free one; static
// definitions never carry a symbol. Adding an identical definition returns
// the existing entry.
func (d *Dictionary) Add(def Definition) (*Definition, error) {
	if def.AppliesTo == Residue {
		def.AppliesTo = appliesToFromResidues(def.TargetResidues)
	}
	if def.IsStatic() {
		def.Symbol = 0
	}

	for _, existing := range d.defs {
		if existing.Type == def.Type &&
			existing.AppliesTo == def.AppliesTo &&
			existing.TargetResidues == def.TargetResidues &&
			scalar.EqualWithinAbs(existing.Mass, def.Mass, 1e-6) &&
			(def.Symbol == 0 || def.Symbol == existing.Symbol) {
			if existing.Name == "" {
				existing.Name = def.Name
			}
			return existing, nil
		}
	}

	if !def.IsStatic() {
		if def.Symbol == 0 {
			def.Symbol = d.nextSymbol()
		} else if d.symbolInUse(def.Symbol) {
			return nil, fmt.Errorf("%w: %q", ErrSymbolInUse, def.Symbol)
		}
	}

	if def.Tag == "" {
		def.Tag = d.tagFor(def.Mass, 2)
	}
	if len(def.Tag) > MaxTagLength {
		def.Tag = def.Tag[:MaxTagLength]
	}

	stored := def
	d.defs = append(d.defs, &stored)
	return &stored, nil
}

// LookupOrDefine returns the dynamic definition matching mass at precision
// decimal digits for the residue and terminal state. The closest mass wins;
// ties go to the earlier definition. On a miss a new dynamic definition is
// created, so the lookup never fails. A zero residue with a terminal state
// defines a terminal modification.
func (d *Dictionary) LookupOrDefine(m float64, residue byte, term Terminus, precision int) *Definition {
	if def := d.lookup(m, residue, term, precision, false); def != nil {
		return def
	}

	def := Definition{
		Mass:        m,
		Type:        Dynamic,
		AppliesTo:   Residue,
		Symbol:      d.nextSymbol(),
		AutoDefined: true,
	}
	if residue != 0 {
		def.TargetResidues = string(residue)
	} else {
		switch term {
		case PeptideNTerm:
			def.AppliesTo, def.TargetResidues = PeptideNTerminus, string(PeptideNTermMarker)
		case ProteinNTerm:
			def.AppliesTo, def.TargetResidues = ProteinNTerminus, string(ProteinNTermMarker)
		case PeptideCTerm:
			def.AppliesTo, def.TargetResidues = PeptideCTerminus, string(PeptideCTermMarker)
		case ProteinCTerm:
			def.AppliesTo, def.TargetResidues = ProteinCTerminus, string(ProteinCTermMarker)
		}
	}

	if tag, ok := d.tags.Lookup(m, precision); ok {
		def.Tag = tag
	} else {
		d.autoCount++
		def.Tag = fmt.Sprintf("UnnamedMod%d", d.autoCount)
	}

	stored := def
	d.defs = append(d.defs, &stored)
	return &stored
}

// FindStatic returns the static definition matching mass for the residue.
func (d *Dictionary) FindStatic(m float64, residue byte, term Terminus, precision int) (*Definition, bool) {
	def := d.lookup(m, residue, term, precision, true)
	return def, def != nil
}

func (d *Dictionary) lookup(m float64, residue byte, term Terminus, precision int, static bool) *Definition {
	tol := Tolerance(precision)
	var best *Definition
	bestDiff := math.Inf(1)
	for _, def := range d.defs {
		if def.IsStatic() != static {
			continue
		}
		if !scalar.EqualWithinAbs(def.Mass, m, tol) {
			continue
		}
		if !def.Matches(residue, term) {
			continue
		}
		if diff := math.Abs(def.Mass - m); diff < bestDiff {
			best, bestDiff = def, diff
		}
	}
	return best
}

// BySymbol returns the dynamic definition displayed with sym.
func (d *Dictionary) BySymbol(sym rune) (*Definition, bool) {
	for _, def := range d.defs {
		if def.Symbol == sym && !def.IsStatic() {
			return def, true
		}
	}
	return nil, false
}

// RegisterOccurrence counts one use of def.
func (d *Dictionary) RegisterOccurrence(def *Definition) {
	if def != nil {
		def.Occurrences++
	}
}

// All returns every definition in insertion order.
func (d *Dictionary) All() []*Definition {
	return append([]*Definition(nil), d.defs...)
}

// Static returns the static definitions in insertion order.
func (d *Dictionary) Static() []*Definition {
	var out []*Definition
	for _, def := range d.defs {
		if def.IsStatic() {
			out = append(out, def)
		}
	}
	return out
}

// Dynamic returns the dynamic and isotopic definitions in insertion order.
func (d *Dictionary) Dynamic() []*Definition {
	var out []*Definition
	for _, def := range d.defs {
		if !def.IsStatic() {
			out = append(out, def)
		}
	}
	return out
}

// SummaryDefinitions returns the definitions reported in the modification
// summary: those seen at least once plus every explicitly defined one.
func (d *Dictionary) SummaryDefinitions() []*Definition {
	var out []*Definition
	for _, def := range d.defs {
		if def.Occurrences > 0 || !def.AutoDefined {
			out = append(out, def)
		}
	}
	return out
}

// Len returns the number of definitions.
func (d *Dictionary) Len() int {
	return len(d.defs)
}

func (d *Dictionary) symbolInUse(sym rune) bool {
	for _, def := range d.defs {
		if def.Symbol == sym && !def.IsStatic() {
			return true
		}
	}
	return false
}

func (d *Dictionary) nextSymbol() rune {
	for _, s := range d.symbols {
		if !d.symbolInUse(s) {
			return s
		}
	}
	for s := rune(overflowSymbolStart); ; s++ {
		if !d.symbolInUse(s) {
			return s
		}
	}
}

func (d *Dictionary) tagFor(m float64, precision int) string {
	for p := precision; p >= 0; p-- {
		if tag, ok := d.tags.Lookup(m, p); ok {
			return tag
		}
	}
	d.autoCount++
	return fmt.Sprintf("UnnamedMod%d", d.autoCount)
}
