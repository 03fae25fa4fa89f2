package psm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-phrp/internal/mass"
	"github.com/inodb/vibe-phrp/internal/mods"
)

func TestErrorLog_Cap(t *testing.T) {
	var log ErrorLog
	assert.True(t, log.Empty())

	require.True(t, log.Addf("line %d: expected at least %d columns, found %d", 2, 15, 3))
	assert.Equal(t, 1, log.Entries())

	long := strings.Repeat("x", 1000)
	for i := 0; i < 10; i++ {
		log.Addf("%s", long)
	}
	assert.LessOrEqual(t, len(log.String()), MaxErrorLogLength)
	assert.Positive(t, log.Dropped())
	assert.Equal(t, 5, log.Entries())
	assert.Equal(t, 6, log.Dropped())
}

func TestErrorLog_DropsEverythingAfterOverflow(t *testing.T) {
	var log ErrorLog
	require.True(t, log.Addf("%s", strings.Repeat("x", MaxErrorLogLength-100)))

	// Too long: the log is full from here on.
	assert.False(t, log.Addf("%s", strings.Repeat("y", 200)))
	// Would still fit, but must not appear after the overflow.
	assert.False(t, log.Addf("line 9: short"))

	assert.Equal(t, 1, log.Entries())
	assert.Equal(t, 2, log.Dropped())
	assert.NotContains(t, log.String(), "short")
}

func TestLooksLikeHeader(t *testing.T) {
	header := SplitLine("#SpectrumFile\tScan#\tAnnotation\tProtein\tCharge\tMQScore")
	assert.True(t, LooksLikeHeader(header, 5))

	data := SplitLine("0\t100\tK.PEPTIDE.R\tProteinA\t2\t1.5")
	assert.False(t, LooksLikeHeader(data, 5))

	assert.True(t, LooksLikeHeader(nil, 5))
}

func TestParseOr(t *testing.T) {
	assert.Equal(t, 1.5, ParseFloatOr(" 1.5 ", 0))
	assert.Equal(t, -1.0, ParseFloatOr("n/a", -1))
	assert.Equal(t, 2, ParseIntOr("2", 0))
	assert.Equal(t, 3, ParseIntOr("3.0", 0))
	assert.Equal(t, 0, ParseIntOr("", 0))
}

func TestScanFromDTAName(t *testing.T) {
	scan, charge, ok := ScanFromDTAName("QC_Shew_07.1234.1234.3.dta")
	require.True(t, ok)
	assert.Equal(t, 1234, scan)
	assert.Equal(t, 3, charge)

	_, _, ok = ScanFromDTAName("spectra.mzXML")
	assert.False(t, ok)

	assert.Equal(t, 100, ResolveScan("100", "x.5.5.2.dta"))
	assert.Equal(t, 5, ResolveScan("0", "x.5.5.2.dta"))
	// Neither source has a scan; the result falls back to 0.
	assert.Equal(t, 0, ResolveScan("", "spectra.mgf"))
}

func newResult(prefix byte, seq string, suffix byte) *Result {
	return &Result{Prefix: prefix, CleanSequence: seq, Suffix: suffix}
}

func TestResult_ModDescriptionAndMass(t *testing.T) {
	d := mods.NewDictionary(nil)
	ox, err := d.Add(mods.Definition{Mass: 15.994915, TargetResidues: "M", Type: mods.Dynamic})
	require.NoError(t, err)
	_, err = d.Add(mods.Definition{Mass: 57.021464, TargetResidues: "C", Type: mods.Static})
	require.NoError(t, err)

	r := newResult('K', "PEPCMIDE", 'R')
	require.NoError(t, r.AddModification(ox, 5))
	assert.Equal(t, 1, r.ApplyStaticMods(d))

	assert.Equal(t, "IodoAcet:4,Plus1Oxy:5", r.ModDescription())

	want := mass.CleanSequenceMass("PEPCMIDE") + 15.994915 + 57.021464
	assert.InDelta(t, want, r.ComputeMass(), 1e-9)
	assert.InDelta(t, want, r.MonoMass, 1e-9)

	assert.Equal(t, "", newResult('K', "PEPTIDE", 'R').ModDescription())
}

func TestResult_AddModificationErrors(t *testing.T) {
	d := mods.NewDictionary(nil)
	nterm, _ := d.Add(mods.Definition{Mass: 42.010565, TargetResidues: "<", Type: mods.Dynamic})

	r := newResult('-', "MPEPTIDE", 'R')
	require.NoError(t, r.AddModification(nterm, 1))
	assert.Equal(t, mods.ProteinNTerm, r.Mods[0].Terminus)

	assert.Error(t, r.AddModification(nterm, 1))
	assert.Error(t, r.AddModification(nterm, 9))
	assert.Error(t, r.AddModification(nil, 1))
}

func TestResult_ClearKeepsCapacity(t *testing.T) {
	d := mods.NewDictionary(nil)
	ox, _ := d.Add(mods.Definition{Mass: 15.994915, TargetResidues: "M", Type: mods.Dynamic})
	r := newResult('K', "MM", 'R')
	require.NoError(t, r.AddModification(ox, 1))
	r.Scan = 10

	r.Clear()
	assert.Empty(t, r.Mods)
	assert.Zero(t, r.Scan)
	assert.Equal(t, "", r.CleanSequence)
}

func TestTrypticCleavage(t *testing.T) {
	tests := []struct {
		prefix byte
		seq    string
		suffix byte
		want   CleavageState
	}{
		{'K', "AEPTIDER", 'A', FullyCleaved},
		{'-', "MPEPTIDEK", 'A', FullyCleaved},
		{'K', "AEPTIDER", 'P', PartiallyCleaved},
		{'K', "PEPTIDER", 'A', PartiallyCleaved},
		{'A', "AEPTIDER", 'G', PartiallyCleaved},
		{'A', "AEPTIDEA", 'G', NonSpecific},
		{'R', "AEPTIDEA", '-', FullyCleaved},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrypticCleavage(tt.prefix, tt.seq, tt.suffix), "%c.%s.%c", tt.prefix, tt.seq, tt.suffix)
	}
}

func TestTerminusFor(t *testing.T) {
	assert.Equal(t, TerminusNone, TerminusFor('K', 'A'))
	assert.Equal(t, TerminusProteinN, TerminusFor('-', 'A'))
	assert.Equal(t, TerminusProteinC, TerminusFor('K', '-'))
	assert.Equal(t, TerminusProteinNandC, TerminusFor('-', '-'))
}

func TestTruncateProtein(t *testing.T) {
	assert.Equal(t, "SO_1234", TruncateProtein("SO_1234 hypothetical protein"))
	assert.Equal(t, "ProteinA", TruncateProtein("ProteinA"))
}
