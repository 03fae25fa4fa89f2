package moda

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-phrp/internal/lineio"
	"github.com/inodb/vibe-phrp/internal/mass"
	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/output"
	"github.com/inodb/vibe-phrp/internal/psm"
)

const rawHeader = "SpectrumFile\tIndex\tObservedMonoMass\tCharge\tCalculatedMonoMass\tDeltaMass\tScore\tProbability\tPeptide\tProtein\tPeptidePosition"

func rawLine(spectrum, index, charge, score, prob, peptide string) string {
	return strings.Join([]string{
		spectrum, index, "0", charge, "0", "0", score, prob, peptide, "Prot1 some description", "10~18",
	}, "\t")
}

func TestParseParams(t *testing.T) {
	dict := mods.NewDictionary(nil)
	n, err := ParseParams(strings.NewReader("Spectra=Data.mgf\nADD=C, 57.021464\nadd=NTerm, 42.010565\nPPMTolerance=20\n"), dict)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	static := dict.Static()
	require.Len(t, static, 2)
	assert.Equal(t, "C", static[0].TargetResidues)
	assert.Equal(t, "<", static[1].TargetResidues)
	assert.True(t, static[1].IsNTerminal())

	_, err = ParseParams(strings.NewReader("ADD=C 57\n"), dict)
	assert.ErrorContains(t, err, "expected <residue>, <mass>")
	_, err = ParseParams(strings.NewReader("ADD=CX, 57\n"), dict)
	assert.ErrorContains(t, err, "invalid residue")
	_, err = ParseParams(strings.NewReader("ADD=C, abc\n"), dict)
	assert.ErrorContains(t, err, "invalid mass")
}

func TestParseLineScan(t *testing.T) {
	errs := &psm.ErrorLog{}
	p := NewProcessor(mods.NewDictionary(nil), DefaultOptions(), errs)

	_, kind := p.ParseLine(rawHeader, 0)
	assert.Equal(t, psm.Header, kind)

	rec, kind := p.ParseLine(rawLine("Data.1234.1234.2.dta", "5", "2", "30", "0.9", "K.PEPTIDE.R"), 1)
	require.Equal(t, psm.DataRow, kind)
	assert.Equal(t, 1234, rec.Scan)
	assert.Equal(t, 5, rec.SpectrumIndex)
	assert.Equal(t, "Prot1", rec.Protein)

	rec, _ = p.ParseLine(rawLine("Data.mgf", "5", "2", "30", "0.9", "K.PEPTIDE.R"), 2)
	assert.Equal(t, 5, rec.Scan)

	p.SetScanMap(map[int]int{5: 999})
	rec, _ = p.ParseLine(rawLine("Data.1234.1234.2.dta", "5", "2", "30", "0.9", "K.PEPTIDE.R"), 3)
	assert.Equal(t, 999, rec.Scan)

	_, kind = p.ParseLine("Data.mgf\t5\t100", 4)
	assert.Equal(t, psm.Invalid, kind)
	assert.Equal(t, 1, errs.Entries())

	_, kind = p.ParseLine(rawLine("Data.mgf", "5", "2", "30", "0.9", ""), 5)
	assert.Equal(t, psm.Invalid, kind)
	assert.Contains(t, errs.String(), "line 6: missing peptide or protein")
}

func TestParseLineMassOffsets(t *testing.T) {
	dict := mods.NewDictionary(nil)
	_, err := ParseParams(strings.NewReader("ADD=C, 57.021464\n"), dict)
	require.NoError(t, err)
	p := NewProcessor(dict, DefaultOptions(), nil)

	clean := "PEPSTCIDE"
	mono := mass.CleanSequenceMass(clean) + 57.021464 + 79.966331
	line := strings.Join([]string{
		"Data.mgf", "7", psm.FormatFloat(mono, 6), "2", "0", "0", "40", "0.8",
		"K.PEPS+79.966TCIDE.R", "Prot1", "3~11",
	}, "\t")

	rec, kind := p.ParseLine(line, 1)
	require.Equal(t, psm.DataRow, kind)
	assert.Equal(t, clean, rec.CleanSequence)

	phos := dict.Dynamic()
	require.Len(t, phos, 1)
	assert.True(t, phos[0].AutoDefined)
	assert.Equal(t, "K.PEPS"+string(phos[0].Symbol)+"TCIDE.R", rec.PeptideWithMods)
	assert.Len(t, rec.Mods, 2)

	assert.InDelta(t, mono, rec.MonoMass, 1e-3)
	assert.InDelta(t, 0, rec.DelMPPM, 2)
	assert.InDelta(t, (mono+2*mass.Proton)/2, rec.PrecursorMZ, 1e-6)

	// The same offset on another line resolves to the same definition.
	line = strings.Replace(line, "K.PEPS+79.966TCIDE.R", "R.AS+79.97K.L", 1)
	rec, _ = p.ParseLine(line, 2)
	assert.Equal(t, "R.AS"+string(phos[0].Symbol)+"K.L", rec.PeptideWithMods)
	assert.Len(t, dict.Dynamic(), 1)
}

func TestProcess(t *testing.T) {
	p := NewProcessor(mods.NewDictionary(nil), DefaultOptions(), nil)
	input := strings.Join([]string{
		rawHeader,
		rawLine("Data.mgf", "10", "2", "20", "0.01", "K.LOWPROB.R"),
		rawLine("Data.mgf", "10", "2", "30", "0.9", "K.PEPTIDE.R"),
		rawLine("Data.mgf", "10", "3", "60", "0.01", "K.HIGHSCQRE.R"),
		rawLine("Data.mgf", "11", "2", "5", "0.2", "K.SAMPLER.R"),
	}, "\n")

	in, err := lineio.NewReader(strings.NewReader(input))
	require.NoError(t, err)
	var synBuf, fhtBuf bytes.Buffer
	syn := output.NewTabWriter(&synBuf, SynopsisColumns)
	fht := output.NewTabWriter(&fhtBuf, SynopsisColumns)

	stats, err := p.Process(context.Background(), in, syn, fht)
	require.NoError(t, err)
	require.NoError(t, syn.Flush())
	require.NoError(t, fht.Flush())
	assert.Equal(t, 4, stats.Results)
	assert.Equal(t, 3, stats.Synopsis)
	assert.Equal(t, 3, stats.FirstHits)

	synRows := strings.Split(strings.TrimSpace(synBuf.String()), "\n")
	require.Len(t, synRows, 3)
	first := strings.Split(synRows[0], "\t")
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "K.PEPTIDE.R", first[8])
	assert.Equal(t, "1", first[12])
	second := strings.Split(synRows[1], "\t")
	assert.Equal(t, "K.HIGHSCQRE.R", second[8])
	assert.Equal(t, "2", second[12])
	third := strings.Split(synRows[2], "\t")
	assert.Equal(t, "K.SAMPLER.R", third[8])
	assert.Equal(t, "11", third[1])

	fhtRows := strings.Split(strings.TrimSpace(fhtBuf.String()), "\n")
	require.Len(t, fhtRows, 3)
	assert.Contains(t, fhtRows[0], "K.PEPTIDE.R")
	assert.Contains(t, fhtRows[1], "K.HIGHSCQRE.R")
	assert.Contains(t, fhtRows[2], "K.SAMPLER.R")
}
