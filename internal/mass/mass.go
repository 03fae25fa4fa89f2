// Package mass provides monoisotopic peptide mass calculations.
package mass

import "math"

// Reference masses (monoisotopic).
const (
	Proton   = 1.00727646688
	Water    = 18.0105646863
	Hydrogen = 1.0078250321

	// C13Spacing is the mass difference between the 13C and 12C isotopes.
	C13Spacing = 1.00335483
)

// residueMass holds amino acid residue masses (free acid minus water).
var residueMass = map[byte]float64{
	'A': 71.0371138,
	'C': 103.0091848,
	'D': 115.0269430,
	'E': 129.0425931,
	'F': 147.0684139,
	'G': 57.0214637,
	'H': 137.0589119,
	'I': 113.0840640,
	'K': 128.0949630,
	'L': 113.0840640,
	'M': 131.0404849,
	'N': 114.0429274,
	'O': 237.1477269, // Pyrrolysine
	'P': 97.0527638,
	'Q': 128.0585775,
	'R': 156.1011110,
	'S': 87.0320284,
	'T': 101.0476785,
	'U': 150.9536355, // Selenocysteine
	'V': 99.0684139,
	'W': 186.0793129,
	'Y': 163.0633285,
}

// ResidueMass returns the monoisotopic residue mass for an amino acid letter.
// Lowercase letters are accepted.
func ResidueMass(aa byte) (float64, bool) {
	if aa >= 'a' && aa <= 'z' {
		aa -= 'a' - 'A'
	}
	m, ok := residueMass[aa]
	return m, ok
}

// CleanSequenceMass returns the monoisotopic neutral mass of an unmodified
// peptide: the sum of its residue masses plus water. Characters that are not
// amino acids contribute nothing.
func CleanSequenceMass(seq string) float64 {
	if seq == "" {
		return 0
	}
	m := Water
	for i := 0; i < len(seq); i++ {
		if rm, ok := ResidueMass(seq[i]); ok {
			m += rm
		}
	}
	return m
}

// Calculator converts between neutral masses and m/z values using a
// configurable charge carrier.
type Calculator struct {
	ChargeCarrier float64
}

// NewCalculator returns a calculator using the proton as charge carrier.
func NewCalculator() *Calculator {
	return &Calculator{ChargeCarrier: Proton}
}

// ConvoluteMass converts mass from one charge state to another.
// A charge of 0 denotes the neutral mass; charge 1 is the MH value.
func (c *Calculator) ConvoluteMass(m float64, fromCharge, toCharge int) float64 {
	neutral := m
	if fromCharge > 0 {
		neutral = m*float64(fromCharge) - float64(fromCharge)*c.ChargeCarrier
	}
	if toCharge <= 0 {
		return neutral
	}
	return (neutral + float64(toCharge)*c.ChargeCarrier) / float64(toCharge)
}

// MZToNeutral returns the neutral mass for an observed m/z value.
func (c *Calculator) MZToNeutral(mz float64, charge int) float64 {
	return c.ConvoluteMass(mz, charge, 0)
}

// MHToMonoisotopic returns the neutral monoisotopic mass of an MH value.
func (c *Calculator) MHToMonoisotopic(mh float64) float64 {
	return mh - c.ChargeCarrier
}

// NeutralToMH returns the singly protonated (MH) mass.
func (c *Calculator) NeutralToMH(neutral float64) float64 {
	return c.ConvoluteMass(neutral, 0, 1)
}

// MassToPPM converts a mass difference in Da to parts per million of ref.
func MassToPPM(delta, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return delta / ref * 1e6
}

// CorrectedDeltaPPM computes the precursor mass error in ppm.
//
// When adjustC13 is set, the delta is first shifted by the integer number of
// C13 spacings that minimizes the absolute ppm error; search engines often
// pick the wrong isotopic peak as the monoisotopic precursor.
// The ppm base is peptideMass, or precursorMass when peptideMass is zero.
func CorrectedDeltaPPM(delta, precursorMass, peptideMass float64, adjustC13 bool) float64 {
	ref := peptideMass
	if ref == 0 {
		ref = precursorMass
	}
	if ref == 0 {
		return 0
	}

	if adjustC13 && math.Abs(delta) >= C13Spacing/2 {
		n := delta / C13Spacing
		best := delta
		for _, k := range []float64{math.Floor(n), math.Ceil(n)} {
			d := delta - k*C13Spacing
			if math.Abs(d) < math.Abs(best) {
				best = d
			}
		}
		delta = best
	}

	return MassToPPM(delta, ref)
}
