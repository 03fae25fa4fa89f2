// Package synopsis re-reads synopsis and first-hits files written by the
// tool processors, mapping columns by header name.
package synopsis

import (
	"fmt"
	"io"
	"strings"

	"github.com/inodb/vibe-phrp/internal/lineio"
	"github.com/inodb/vibe-phrp/internal/modseq"
	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/psm"
)

// Layout names the header columns a tool writes for the canonical fields.
// Optional columns may be left empty.
type Layout struct {
	ResultID       string
	Scan           string
	Charge         string
	Peptide        string
	Protein        string
	PrimaryScore   string
	SecondaryScore string
	Rank           string
	DelMPPM        string

	ProteinExpectation string
	ProteinIntensity   string
}

// ColumnIndices holds the indices of the mapped synopsis columns.
type ColumnIndices struct {
	ResultID           int
	Scan               int
	Charge             int
	Peptide            int
	Protein            int
	PrimaryScore       int
	SecondaryScore     int
	Rank               int
	DelMPPM            int
	ProteinExpectation int
	ProteinIntensity   int
}

// Reader reads canonical results from a synopsis file.
type Reader struct {
	in         *lineio.Reader
	dict       *mods.Dictionary
	layout     Layout
	columns    ColumnIndices
	headerLine string
	name       string
	errs       *psm.ErrorLog
}

// NewReader reads the header line of in and maps it against layout.
func NewReader(in *lineio.Reader, layout Layout, dict *mods.Dictionary) (*Reader, error) {
	r := &Reader{in: in, dict: dict, layout: layout}
	if err := r.parseHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetErrorLog sets the log receiving modifications that could not be
// placed. Without one they are dropped silently.
func (r *Reader) SetErrorLog(l *psm.ErrorLog) {
	r.errs = l
}

// SetName sets the file name reported in parse errors.
func (r *Reader) SetName(name string) {
	r.name = name
}

func (r *Reader) parseHeader() error {
	for {
		line, err := r.in.Next()
		if err == io.EOF {
			return &lineio.ParseError{File: r.name, Line: r.in.LineNumber(), Message: "no header line found"}
		}
		if err != nil {
			return fmt.Errorf("read synopsis header: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		r.headerLine = line
		return r.parseColumnIndices(line)
	}
}

func (r *Reader) parseColumnIndices(headerLine string) error {
	columns := strings.Split(headerLine, "\t")

	// Initialize all indices to -1 (not found)
	r.columns = ColumnIndices{
		ResultID:           -1,
		Scan:               -1,
		Charge:             -1,
		Peptide:            -1,
		Protein:            -1,
		PrimaryScore:       -1,
		SecondaryScore:     -1,
		Rank:               -1,
		DelMPPM:            -1,
		ProteinExpectation: -1,
		ProteinIntensity:   -1,
	}

	for i, col := range columns {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		switch col {
		case r.layout.ResultID:
			r.columns.ResultID = i
		case r.layout.Scan:
			r.columns.Scan = i
		case r.layout.Charge:
			r.columns.Charge = i
		case r.layout.Peptide:
			r.columns.Peptide = i
		case r.layout.Protein:
			r.columns.Protein = i
		case r.layout.PrimaryScore:
			r.columns.PrimaryScore = i
		case r.layout.SecondaryScore:
			r.columns.SecondaryScore = i
		case r.layout.Rank:
			r.columns.Rank = i
		case r.layout.DelMPPM:
			r.columns.DelMPPM = i
		case r.layout.ProteinExpectation:
			r.columns.ProteinExpectation = i
		case r.layout.ProteinIntensity:
			r.columns.ProteinIntensity = i
		}
	}

	required := []struct {
		name  string
		index int
	}{
		{r.layout.ResultID, r.columns.ResultID},
		{r.layout.Scan, r.columns.Scan},
		{r.layout.Charge, r.columns.Charge},
		{r.layout.Peptide, r.columns.Peptide},
		{r.layout.Protein, r.columns.Protein},
		{r.layout.PrimaryScore, r.columns.PrimaryScore},
	}
	for _, c := range required {
		if c.index == -1 {
			return &lineio.ParseError{
				File:    r.name,
				Line:    r.in.LineNumber(),
				Message: fmt.Sprintf("required column '%s' not found in header", c.name),
			}
		}
	}
	return nil
}

// Columns returns the parsed column indices.
func (r *Reader) Columns() ColumnIndices {
	return r.columns
}

// Header returns the header line.
func (r *Reader) Header() string {
	return r.headerLine
}

// Next reads the next result. It returns nil, nil at end of input.
// Modification symbols are resolved through the dictionary and static
// modifications applied before the mass is computed.
func (r *Reader) Next() (*psm.Result, error) {
	for {
		line, err := r.in.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return r.parseLine(line)
	}
}

func (r *Reader) parseLine(line string) (*psm.Result, error) {
	fields := strings.Split(line, "\t")
	peptide := psm.Field(fields, r.columns.Peptide)
	if peptide == "" {
		return nil, &lineio.ParseError{File: r.name, Line: r.in.LineNumber(), Message: "missing peptide"}
	}

	res := &psm.Result{
		ResultID:              psm.ParseIntOr(psm.Field(fields, r.columns.ResultID), 0),
		Scan:                  psm.ParseIntOr(psm.Field(fields, r.columns.Scan), 0),
		Charge:                psm.ParseIntOr(psm.Field(fields, r.columns.Charge), 0),
		PrimaryScore:          psm.ParseFloatOr(psm.Field(fields, r.columns.PrimaryScore), 0),
		SecondaryScore:        psm.ParseFloatOr(psm.Field(fields, r.columns.SecondaryScore), 0),
		Rank:                  psm.ParseIntOr(psm.Field(fields, r.columns.Rank), 1),
		DelMPPM:               psm.ParseFloatOr(psm.Field(fields, r.columns.DelMPPM), 0),
		ProteinExpectationLog: psm.ParseFloatOr(psm.Field(fields, r.columns.ProteinExpectation), 0),
		ProteinIntensityLog:   psm.ParseFloatOr(psm.Field(fields, r.columns.ProteinIntensity), 0),
	}
	res.SetProtein(psm.Field(fields, r.columns.Protein))

	for _, err := range modseq.Apply(res, peptide, r.dict) {
		if r.errs != nil {
			r.errs.Addf("result %d: %v", res.ResultID, err)
		}
	}
	res.ApplyStaticMods(r.dict)
	res.ComputeMass()
	return res, nil
}
