// Package modseq converts tool-specific modification notation inside
// peptide strings to canonical modification symbols, and parses canonical
// peptides back into clean sequences plus applied modifications.
//
// A canonical peptide has the form prefix.body.suffix where body holds
// upper-case residues, each optionally followed by the symbols of the
// dynamic modifications placed on it. Protein termini are written as '-'.
package modseq

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/psm"
)

// TerminalMassTolerance is the window used when matching integer terminal
// mass offsets to modification definitions.
const TerminalMassTolerance = 0.5

var (
	leadingOffset  = regexp.MustCompile(`^[+-]\d+`)
	trailingOffset = regexp.MustCompile(`[+-]\d+$`)
)

// Split separates a peptide of the form X.BODY.Y into its parts. Peptides
// without flanking residues are returned as body only.
func Split(peptide string) (prefix, body, suffix string) {
	n := len(peptide)
	if n >= 4 && peptide[1] == '.' && peptide[n-2] == '.' {
		return peptide[:1], peptide[2 : n-2], peptide[n-1:]
	}
	return "", peptide, ""
}

// Join is the inverse of Split.
func Join(prefix, body, suffix string) string {
	if prefix == "" && suffix == "" {
		return body
	}
	if prefix == "" {
		prefix = string(psm.ProteinTerminusResidue)
	}
	if suffix == "" {
		suffix = string(psm.ProteinTerminusResidue)
	}
	return prefix + "." + body + "." + suffix
}

// NormalizeTermini rewrites the '*' terminus markers some tools use, and
// X!Tandem style '[' and ']', to the canonical '-'.
func NormalizeTermini(peptide string) string {
	prefix, body, suffix := Split(peptide)
	return Join(normalizeFlank(prefix), body, normalizeFlank(suffix))
}

func normalizeFlank(s string) string {
	switch s {
	case "*", "[", "]":
		return string(psm.ProteinTerminusResidue)
	}
	return s
}

// Canonicalize normalizes the termini of peptide and rewrites its body with
// resolve.
func Canonicalize(peptide string, resolve func(body string) string) string {
	prefix, body, suffix := Split(NormalizeTermini(peptide))
	return Join(prefix, resolve(body), suffix)
}

// ReplaceTerminalMassOffsets replaces a leading or trailing integer mass
// offset in body with the symbol of the matching terminal definition.
// Offsets that match no definition are left untouched.
func ReplaceTerminalMassOffsets(body string, defs []*mods.Definition) string {
	if loc := leadingOffset.FindStringIndex(body); loc != nil {
		if def := matchTerminal(body[loc[0]:loc[1]], defs, true); def != nil {
			body = string(def.Symbol) + body[loc[1]:]
		}
	}
	if loc := trailingOffset.FindStringIndex(body); loc != nil {
		if def := matchTerminal(body[loc[0]:loc[1]], defs, false); def != nil {
			body = body[:loc[0]] + string(def.Symbol)
		}
	}
	return body
}

func matchTerminal(offset string, defs []*mods.Definition, nTerminal bool) *mods.Definition {
	v, err := strconv.Atoi(offset)
	if err != nil {
		return nil
	}
	for _, def := range defs {
		if def.IsStatic() || def.Symbol == 0 {
			continue
		}
		if nTerminal && !def.IsNTerminal() || !nTerminal && !def.IsCTerminal() {
			continue
		}
		if math.Abs(def.Mass-float64(v)) <= TerminalMassTolerance {
			return def
		}
	}
	return nil
}

// ReplaceNamedTags substitutes the tool-specific name of every dynamic
// definition with its symbol, in definition order. Names of static
// definitions are removed since static mods carry no symbol.
func ReplaceNamedTags(body string, defs []*mods.Definition) string {
	for _, def := range defs {
		if def.Name == "" || !strings.Contains(body, def.Name) {
			continue
		}
		if def.IsStatic() || def.Symbol == 0 {
			body = strings.ReplaceAll(body, def.Name, "")
			continue
		}
		body = strings.ReplaceAll(body, def.Name, string(def.Symbol))
	}
	return body
}

// ResolveMassOffsets handles free-floating numeric offsets such as
// "PEP+53.8TIDE". Digits and signs are collected into a buffer; when the
// next residue (or the end of the body) is reached the buffered mass is
// looked up in dict for the preceding residue and replaced by its symbol.
// An offset before the first residue is bound to residue 1 as an
// N-terminal modification. proteinNTerm reports whether the peptide starts
// its protein.
func ResolveMassOffsets(body string, dict *mods.Dictionary, precision int, proteinNTerm bool) string {
	if strings.IndexAny(body, "+-") < 0 {
		return body
	}

	var out strings.Builder
	var buf strings.Builder
	var last byte
	pendingNTerm := ""

	nTerm := mods.PeptideNTerm
	if proteinNTerm {
		nTerm = mods.ProteinNTerm
	}

	flush := func(atEnd bool) {
		if buf.Len() == 0 {
			return
		}
		text := buf.String()
		buf.Reset()
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			out.WriteString(text)
			return
		}
		term := mods.NotTerminal
		if atEnd {
			term = mods.PeptideCTerm
		}
		def := dict.LookupOrDefine(v, last, term, precision)
		out.WriteRune(def.Symbol)
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case isResidue(c):
			if last == 0 && buf.Len() > 0 {
				pendingNTerm = buf.String()
				buf.Reset()
			} else {
				flush(false)
			}
			out.WriteByte(c)
			last = c
			if pendingNTerm != "" {
				if v, err := strconv.ParseFloat(pendingNTerm, 64); err == nil {
					out.WriteRune(dict.LookupOrDefine(v, c, nTerm, precision).Symbol)
				}
				pendingNTerm = ""
			}
		case isOffsetChar(c) && (buf.Len() > 0 || c == '+' || c == '-'):
			if (c == '+' || c == '-') && buf.Len() > 0 {
				flush(false)
			}
			buf.WriteByte(c)
		default:
			flush(false)
			out.WriteByte(c)
		}
	}
	if last != 0 {
		flush(true)
	} else if buf.Len() > 0 {
		out.WriteString(buf.String())
	}
	return out.String()
}

func isResidue(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isOffsetChar(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

// Parsed is a canonical peptide split into its clean sequence and the
// dynamic modifications placed on it.
type Parsed struct {
	Prefix byte
	Suffix byte
	Clean  string
	Mods   []psm.AppliedMod
	// Rejected holds one error per symbol that could not be placed, such
	// as a second modification on an already modified terminus.
	Rejected []error
}

// Parse reads a canonical peptide. Symbols are resolved through dict; an
// unknown symbol is ignored. A symbol seen before any residue attaches to
// residue 1 only when it names an N-terminal definition, otherwise it is
// dropped.
func Parse(peptide string, dict *mods.Dictionary) Parsed {
	prefix, body, suffix := Split(NormalizeTermini(peptide))

	var p Parsed
	if prefix != "" {
		p.Prefix = prefix[0]
	}
	if suffix != "" {
		p.Suffix = suffix[0]
	}

	var clean strings.Builder
	var leading []*mods.Definition
	type placed struct {
		def *mods.Definition
		pos int
	}
	var found []placed

	for _, c := range body {
		if c < 128 && isResidue(byte(c)) {
			clean.WriteByte(byte(c))
			if clean.Len() == 1 {
				for _, def := range leading {
					found = append(found, placed{def, 1})
				}
				leading = nil
			}
			continue
		}
		def, ok := dict.BySymbol(c)
		if !ok {
			continue
		}
		if clean.Len() == 0 {
			if def.IsNTerminal() {
				leading = append(leading, def)
			}
			continue
		}
		found = append(found, placed{def, clean.Len()})
	}

	p.Clean = clean.String()
	r := psm.Result{Prefix: p.Prefix, Suffix: p.Suffix, CleanSequence: p.Clean}
	for _, f := range found {
		if err := r.AddModification(f.def, f.pos); err != nil {
			p.Rejected = append(p.Rejected, err)
		}
	}
	p.Mods = r.Mods
	return p
}

// Apply parses peptide into r: clean sequence, flanking residues, canonical
// peptide text and dynamic modifications. Static modifications are not
// added. Symbols that could not be placed are left out of the peptide text
// and returned as errors.
func Apply(r *psm.Result, peptide string, dict *mods.Dictionary) []error {
	p := Parse(peptide, dict)
	r.PeptideWithMods = NormalizeTermini(peptide)
	r.CleanSequence = p.Clean
	r.Prefix = p.Prefix
	r.Suffix = p.Suffix
	r.Mods = append(r.Mods[:0], p.Mods...)
	if len(p.Rejected) > 0 {
		r.PeptideWithMods = Format(r)
	}
	return p.Rejected
}

// Format renders r as a canonical peptide: dynamic modification symbols
// follow the residue they sit on, ordered by position then tag.
func Format(r *psm.Result) string {
	var sb strings.Builder
	sorted := r.SortedMods()
	k := 0
	for i := 0; i < len(r.CleanSequence); i++ {
		sb.WriteByte(r.CleanSequence[i])
		for k < len(sorted) && sorted[k].Position == i+1 {
			if !sorted[k].Def.IsStatic() && sorted[k].Def.Symbol != 0 {
				sb.WriteRune(sorted[k].Def.Symbol)
			}
			k++
		}
	}
	prefix, suffix := "", ""
	if r.Prefix != 0 {
		prefix = string(r.Prefix)
	}
	if r.Suffix != 0 {
		suffix = string(r.Suffix)
	}
	if prefix == "" && suffix == "" {
		return sb.String()
	}
	return Join(prefix, sb.String(), suffix)
}
