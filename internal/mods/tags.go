package mods

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats/scalar"
)

// MaxTagLength is the maximum length of a mass-correction tag.
const MaxTagLength = 8

// MassCorrectionTag names a modification mass.
type MassCorrectionTag struct {
	Tag  string  `csv:"Mass_Correction_Tag"`
	Mass float64 `csv:"Monoisotopic_Mass"`
}

// TagTable is an ordered list of mass-correction tags.
type TagTable struct {
	tags []MassCorrectionTag
}

// DefaultTags returns the built-in mass-correction tags, used when no tag
// file is available.
func DefaultTags() *TagTable {
	return &TagTable{tags: []MassCorrectionTag{
		{"Acetyl", 42.010565},
		{"AmTrans", -0.984016},
		{"Biotinyl", 226.077598},
		{"Deamide", 0.984016},
		{"DiMethyl", 28.0313},
		{"Guanid", 42.021798},
		{"ICAT_C12", 227.126991},
		{"ICAT_C13", 236.157185},
		{"IodoAcet", 57.021464},
		{"itrac", 144.102063},
		{"Methyl", 14.01565},
		{"NH3_Loss", -17.026549},
		{"Phosph", 79.966331},
		{"Plus1Oxy", 15.994915},
		{"Plus2Oxy", 31.989829},
		{"Sulfo", 79.956815},
		{"TMT6Tag", 229.162932},
		{"TriMeth", 42.04695},
		{"Ubiq_02", 114.042927},
		{"H2O_Loss", -18.010565},
	}}
}

// NewTagTable builds a table from explicit tags.
func NewTagTable(tags []MassCorrectionTag) *TagTable {
	return &TagTable{tags: append([]MassCorrectionTag(nil), tags...)}
}

// LoadMassCorrectionTags reads a tab-delimited mass-correction tag file with
// Mass_Correction_Tag and Monoisotopic_Mass columns.
func LoadMassCorrectionTags(path string) (*TagTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mass correction tags: %w", err)
	}
	defer f.Close()

	return ParseMassCorrectionTags(f)
}

// ParseMassCorrectionTags parses mass-correction tags from r.
func ParseMassCorrectionTags(r io.Reader) (*TagTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []*MassCorrectionTag
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, fmt.Errorf("parse mass correction tags: %w", err)
	}

	t := &TagTable{}
	for _, row := range rows {
		tag := strings.TrimSpace(row.Tag)
		if tag == "" {
			continue
		}
		t.tags = append(t.tags, MassCorrectionTag{Tag: tag, Mass: row.Mass})
	}
	return t, nil
}

// Len returns the number of tags.
func (t *TagTable) Len() int {
	return len(t.tags)
}

// Lookup returns the tag whose mass matches m at precision decimal digits;
// the closest mass wins.
func (t *TagTable) Lookup(m float64, precision int) (string, bool) {
	if t == nil {
		return "", false
	}
	tol := Tolerance(precision)
	best := ""
	bestDiff := math.Inf(1)
	for _, tag := range t.tags {
		if !scalar.EqualWithinAbs(tag.Mass, m, tol) {
			continue
		}
		if d := math.Abs(tag.Mass - m); d < bestDiff {
			best, bestDiff = tag.Tag, d
		}
	}
	return best, best != ""
}

// Mass returns the mass for a tag name.
func (t *TagTable) Mass(tag string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	for _, mt := range t.tags {
		if strings.EqualFold(mt.Tag, tag) {
			return mt.Mass, true
		}
	}
	return 0, false
}
