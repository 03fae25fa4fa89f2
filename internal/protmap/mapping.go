// Package protmap holds peptide-to-protein mappings: the PepToProtMap table
// written alongside search results, and a FASTA based mapper that builds
// the same table from a protein database.
package protmap

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// Mapping places one peptide in one protein. Residues are 1-based.
type Mapping struct {
	Peptide      string `csv:"Peptide"`
	Protein      string `csv:"Protein"`
	ResidueStart int    `csv:"Residue_Start"`
	ResidueEnd   int    `csv:"Residue_End"`
}

// Table is a set of mappings sorted by clean peptide sequence.
type Table struct {
	mappings []Mapping
	keys     []string
}

// NewTable builds a table from mappings. Peptides are indexed by their
// clean sequence, so modification symbols and flanking residues in the
// peptide column do not affect lookups.
func NewTable(mappings []Mapping) *Table {
	t := &Table{mappings: append([]Mapping(nil), mappings...)}
	sort.SliceStable(t.mappings, func(i, j int) bool {
		return CleanSequence(t.mappings[i].Peptide) < CleanSequence(t.mappings[j].Peptide)
	})
	t.keys = make([]string, len(t.mappings))
	for i, m := range t.mappings {
		t.keys[i] = CleanSequence(m.Peptide)
	}
	return t
}

// Load reads a tab-delimited PepToProtMap file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open peptide to protein map: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a tab-delimited PepToProtMap table from r.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []Mapping
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, fmt.Errorf("parse peptide to protein map: %w", err)
	}
	return NewTable(rows), nil
}

// Len returns the number of mappings.
func (t *Table) Len() int {
	return len(t.mappings)
}

// Mappings returns the mappings in sorted order.
func (t *Table) Mappings() []Mapping {
	return t.mappings
}

// Lookup returns every mapping of the clean sequence of peptide.
func (t *Table) Lookup(peptide string) []Mapping {
	key := CleanSequence(peptide)
	i := sort.SearchStrings(t.keys, key)
	j := i
	for j < len(t.keys) && t.keys[j] == key {
		j++
	}
	return t.mappings[i:j]
}

// Proteins returns the distinct proteins peptide maps to, in table order.
func (t *Table) Proteins(peptide string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range t.Lookup(peptide) {
		if _, ok := seen[m.Protein]; ok {
			continue
		}
		seen[m.Protein] = struct{}{}
		out = append(out, m.Protein)
	}
	return out
}

// CleanSequence strips flanking residues and everything but upper-case
// residue letters from peptide.
func CleanSequence(peptide string) string {
	n := len(peptide)
	if n >= 4 && peptide[1] == '.' && peptide[n-2] == '.' {
		peptide = peptide[2 : n-2]
	}
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, peptide)
}

// Write writes mappings as a tab-delimited PepToProtMap table. When convert
// is non-nil each peptide is rewritten through it, which regenerates a map
// in canonical modification notation.
func Write(w io.Writer, mappings []Mapping, convert func(peptide string) string) error {
	rows := mappings
	if convert != nil {
		rows = make([]Mapping, len(mappings))
		for i, m := range mappings {
			m.Peptide = convert(m.Peptide)
			rows[i] = m
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("write peptide to protein map: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes mappings to path; see Write.
func WriteFile(path string, mappings []Mapping, convert func(peptide string) string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create peptide to protein map: %w", err)
	}
	if err := Write(f, mappings, convert); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
