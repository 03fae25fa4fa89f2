// Package inspect converts InSpecT search results to PHRP synopsis and
// first-hits files.
package inspect

import (
	"github.com/inodb/vibe-phrp/internal/psm"
)

// Raw InSpecT result columns.
const (
	colSpectrumFile = iota
	colScan
	colAnnotation
	colProtein
	colCharge
	colMQScore
	colLength
	colTotalPRMScore
	colMedianPRMScore
	colFractionY
	colFractionB
	colIntensity
	colNTT
	colPValue
	colFScore
	colDeltaScore
	colDeltaScoreOther
	colRecordNumber
	colDBFilePos
	colSpecFilePos
	colPrecursorMZ
	colPrecursorError

	numColumns
)

// MinColumns is the fewest columns a raw result line may have.
const MinColumns = 15

// headerProbeColumns is how many leading columns are tested for numbers
// when deciding whether the first line is a header.
const headerProbeColumns = 5

// Record is one InSpecT result line. Fields keeps the literal column text;
// the numeric shadows are parsed once for ranking and filtering.
type Record struct {
	psm.Result

	Fields       []string
	SpectrumFile string

	MQScore       float64
	TotalPRMScore float64
	PValue        float64
	FScore        float64
	PrecursorMZ   float64

	MH                     float64
	DelM                   float64
	RankTotalPRMScore      int
	RankFScore             int
	DeltaNormMQScore       float64
	DeltaNormTotalPRMScore float64
}

// Clear resets the record for reuse.
func (r *Record) Clear() {
	r.Result.Clear()
	fields := r.Fields[:0]
	*r = Record{Result: r.Result, Fields: fields}
}

// field returns the literal text of column i, or "" when it is absent.
func (r *Record) field(i int) string {
	return psm.Field(r.Fields, i)
}
