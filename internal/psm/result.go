// Package psm holds the canonical peptide-spectrum match shared by all
// search-engine processors, plus the helpers every tool parser uses.
package psm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-phrp/internal/mass"
	"github.com/inodb/vibe-phrp/internal/mods"
)

// AppliedMod is one modification placed on a residue of a peptide.
type AppliedMod struct {
	Def      *mods.Definition
	Residue  byte
	Position int // 1-based position in the clean sequence
	Terminus mods.Terminus
}

// SearchResult is the behavior shared by canonical results of every tool.
type SearchResult interface {
	Clear()
	ComputeMass() float64
	AddModification(def *mods.Definition, position int) error
	Cleavage() CleavageState
}

// PeptideKey identifies a peptide observed in one spectrum at one charge.
type PeptideKey struct {
	Peptide string
	Scan    int
	Charge  int
}

// Result is a canonical search result.
type Result struct {
	ResultID        int
	Scan            int
	Charge          int
	CleanSequence   string
	PeptideWithMods string
	Prefix          byte
	Suffix          byte
	Protein         string
	Mods            []AppliedMod

	MonoMass float64
	DelMPPM  float64
	Rank     int

	PrimaryScore   float64
	SecondaryScore float64

	MultipleProteinCount int

	// Protein-level values reported by tools that score proteins.
	ProteinExpectationLog float64
	ProteinIntensityLog   float64
}

var _ SearchResult = (*Result)(nil)

// Clear resets the result so it can be reused for the next record.
func (r *Result) Clear() {
	kept := r.Mods[:0]
	*r = Result{Mods: kept}
}

// Key returns the peptide/scan/charge identity of the result. The flanking
// residues are not part of the key, so the same match reported against
// several proteins has one key.
func (r *Result) Key() PeptideKey {
	return PeptideKey{Peptide: PeptideBody(r.PeptideWithMods), Scan: r.Scan, Charge: r.Charge}
}

// PeptideBody strips the flanking residues from a peptide written as
// X.BODY.Y.
func PeptideBody(peptide string) string {
	n := len(peptide)
	if n >= 4 && peptide[1] == '.' && peptide[n-2] == '.' {
		return peptide[2 : n-2]
	}
	return peptide
}

// SetProtein stores the protein name truncated at the first space.
func (r *Result) SetProtein(name string) {
	r.Protein = TruncateProtein(name)
}

// TruncateProtein returns name up to the first whitespace.
func TruncateProtein(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		return name[:i]
	}
	return name
}

// ResidueTerminus returns the terminal state of the residue at 1-based pos.
func (r *Result) ResidueTerminus(pos int) mods.Terminus {
	n := len(r.CleanSequence)
	switch {
	case pos == 1 && r.Prefix == ProteinTerminusResidue:
		return mods.ProteinNTerm
	case pos == n && r.Suffix == ProteinTerminusResidue:
		return mods.ProteinCTerm
	case pos == 1:
		return mods.PeptideNTerm
	case pos == n:
		return mods.PeptideCTerm
	}
	return mods.NotTerminal
}

// AddModification places def on the residue at 1-based position. Terminal
// definitions may be added at most once per terminus.
func (r *Result) AddModification(def *mods.Definition, position int) error {
	if def == nil {
		return fmt.Errorf("add modification: nil definition")
	}
	if position < 1 || position > len(r.CleanSequence) {
		return fmt.Errorf("add modification %s: position %d outside peptide of length %d",
			def.Tag, position, len(r.CleanSequence))
	}
	if def.IsTerminal() {
		for _, m := range r.Mods {
			if m.Def.IsTerminal() && m.Position == position &&
				m.Def.IsNTerminal() == def.IsNTerminal() && m.Def.Type == def.Type {
				return fmt.Errorf("add modification %s: terminus at position %d already modified by %s",
					def.Tag, position, m.Def.Tag)
			}
		}
	}
	r.Mods = append(r.Mods, AppliedMod{
		Def:      def,
		Residue:  r.CleanSequence[position-1],
		Position: position,
		Terminus: r.ResidueTerminus(position),
	})
	return nil
}

// ApplyStaticMods adds every static modification of dict that matches a
// residue or terminus of the peptide. It returns the number of mods added.
func (r *Result) ApplyStaticMods(dict *mods.Dictionary) int {
	n := 0
	seq := r.CleanSequence
	for _, def := range dict.Static() {
		if def.IsTerminal() {
			pos := 1
			if def.IsCTerminal() {
				pos = len(seq)
			}
			if pos == 0 || !def.Matches(seq[pos-1], r.ResidueTerminus(pos)) {
				continue
			}
			if r.AddModification(def, pos) == nil {
				n++
			}
			continue
		}
		for i := 0; i < len(seq); i++ {
			if def.Matches(seq[i], mods.NotTerminal) {
				if r.AddModification(def, i+1) == nil {
					n++
				}
			}
		}
	}
	return n
}

// SortedMods returns the applied modifications ordered by position, then
// by mass-correction tag.
func (r *Result) SortedMods() []AppliedMod {
	out := append([]AppliedMod(nil), r.Mods...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Def.Tag < out[j].Def.Tag
	})
	return out
}

// ModDescription returns the modifications as "Tag:pos,Tag:pos", sorted by
// position then tag. Unmodified peptides yield an empty string.
func (r *Result) ModDescription() string {
	if len(r.Mods) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, m := range r.SortedMods() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(m.Def.Tag)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(m.Position))
	}
	return sb.String()
}

// ComputeMass sets and returns the monoisotopic neutral mass of the
// peptide including all applied modifications.
func (r *Result) ComputeMass() float64 {
	m := mass.CleanSequenceMass(r.CleanSequence)
	for _, mod := range r.Mods {
		m += mod.Def.Mass
	}
	r.MonoMass = m
	return m
}

// Cleavage returns the tryptic cleavage state of the peptide.
func (r *Result) Cleavage() CleavageState {
	return TrypticCleavage(r.Prefix, r.CleanSequence, r.Suffix)
}

// Terminus returns the protein terminus state of the peptide.
func (r *Result) Terminus() TerminusState {
	return TerminusFor(r.Prefix, r.Suffix)
}
