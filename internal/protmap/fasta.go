package protmap

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// ProgressFunc receives the number of proteins scanned so far.
type ProgressFunc func(proteins int)

// FASTAMapper finds every occurrence of a set of peptides in a protein
// FASTA file.
type FASTAMapper struct {
	peptides map[string]struct{}
	// byPrefix groups peptides by their first residues so each protein
	// position is tested against a handful of candidates.
	byPrefix map[string][]string
	minLen   int
	progress ProgressFunc
	every    int
}

// Protein databases carry residues outside the strict alphabet (B, J, Z,
// stop codons), so records are read without validation.
func init() {
	seq.ValidateSeq = false
}

// seedLen is the prefix length used to bucket peptides.
const seedLen = 3

// NewFASTAMapper creates a mapper for peptides. Peptides may carry flanking
// residues and modification symbols; only their clean sequence is mapped.
func NewFASTAMapper(peptides []string) *FASTAMapper {
	m := &FASTAMapper{
		peptides: make(map[string]struct{}),
		byPrefix: make(map[string][]string),
		every:    1000,
	}
	for _, p := range peptides {
		clean := CleanSequence(p)
		if clean == "" {
			continue
		}
		if _, ok := m.peptides[clean]; ok {
			continue
		}
		m.peptides[clean] = struct{}{}
		if m.minLen == 0 || len(clean) < m.minLen {
			m.minLen = len(clean)
		}
	}
	seed := m.seed()
	for p := range m.peptides {
		m.byPrefix[p[:seed]] = append(m.byPrefix[p[:seed]], p)
	}
	for k := range m.byPrefix {
		sort.Strings(m.byPrefix[k])
	}
	return m
}

func (m *FASTAMapper) seed() int {
	if m.minLen < seedLen {
		return m.minLen
	}
	return seedLen
}

// SetProgress registers fn to be called every n proteins and once at the end.
func (m *FASTAMapper) SetProgress(fn ProgressFunc, n int) {
	m.progress = fn
	if n > 0 {
		m.every = n
	}
}

// MapFile reads proteins from the FASTA file at path (plain or compressed)
// and returns a table of every peptide occurrence.
func (m *FASTAMapper) MapFile(path string) (*Table, error) {
	reader, err := fastx.NewReader(seq.Protein, path, "")
	if err != nil {
		return nil, fmt.Errorf("open protein FASTA: %w", err)
	}
	defer reader.Close()

	var out []Mapping
	proteins := 0
	for {
		rec, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read protein FASTA: %w", err)
		}
		out = m.mapProtein(out, string(rec.ID), string(rec.Seq.Seq))
		proteins++
		if m.progress != nil && proteins%m.every == 0 {
			m.progress(proteins)
		}
	}
	if m.progress != nil {
		m.progress(proteins)
	}
	return NewTable(out), nil
}

// MapProtein returns the occurrences of the mapper's peptides in one
// protein sequence.
func (m *FASTAMapper) MapProtein(name, residues string) []Mapping {
	return m.mapProtein(nil, name, residues)
}

func (m *FASTAMapper) mapProtein(out []Mapping, name, residues string) []Mapping {
	if len(m.peptides) == 0 {
		return out
	}
	residues = strings.ToUpper(residues)
	seed := m.seed()
	for i := 0; i+m.minLen <= len(residues); i++ {
		for _, p := range m.byPrefix[residues[i:i+seed]] {
			if strings.HasPrefix(residues[i:], p) {
				out = append(out, Mapping{
					Peptide:      p,
					Protein:      name,
					ResidueStart: i + 1,
					ResidueEnd:   i + len(p),
				})
			}
		}
	}
	return out
}
