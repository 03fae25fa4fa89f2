// Package moda converts MODa search results to PHRP synopsis and
// first-hits files.
package moda

import (
	"github.com/inodb/vibe-phrp/internal/psm"
)

// Raw MODa result columns.
const (
	colSpectrumFile = iota
	colIndex
	colObservedMonoMass
	colCharge
	colCalculatedMonoMass
	colDeltaMass
	colScore
	colProbability
	colPeptide
	colProtein
	colPeptidePosition
)

// MinColumns is the fewest columns a raw result line may have.
const MinColumns = 10

const headerProbeColumns = 4

// Record is one MODa result line.
type Record struct {
	psm.Result

	Fields        []string
	SpectrumFile  string
	SpectrumIndex int

	ObservedMass    float64
	CalculatedMass  float64
	Score           float64
	Probability     float64
	PeptidePosition string

	PrecursorMZ     float64
	DelM            float64
	MH              float64
	RankProbability int
}

// Clear resets the record for reuse.
func (r *Record) Clear() {
	r.Result.Clear()
	fields := r.Fields[:0]
	*r = Record{Result: r.Result, Fields: fields}
}
