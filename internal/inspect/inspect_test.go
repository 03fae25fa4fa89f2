package inspect

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

const exampleLine = "0\t100\tK.PEPTIDE.R\tProteinA\t2\t1.5\t8\t60\t30\t0.5\t0.5\t1000\t2\t0.15\t1.2\t0.1\t0.05\t1\t0\t0"

const rawHeader = "#SpectrumFile\tScan#\tAnnotation\tProtein\tCharge\tMQScore\tLength\tTotalPRMScore\tMedianPRMScore\tFractionY\tFractionB\tIntensity\tNTT\tp-value\tF-Score\tDeltaScore\tDeltaScoreOther\tRecordNumber\tDBFilePos\tSpecFilePos\tPrecursorMZ\tPrecursorMZError"

// rawLine builds a result line with the given scan, peptide and scores.
func rawLine(scan, peptide, charge, totalPRM, pValue, fScore string) string {
	return strings.Join([]string{
		"Data.mzXML", scan, peptide, "ProteinA desc", charge, "1.5", "8", totalPRM, "30",
		"0.5", "0.5", "1000", "2", pValue, fScore, "0.1", "0.05", "1", "0", "0",
	}, "\t")
}

func newTestProcessor(t *testing.T) (*Processor, *psm.ErrorLog) {
	t.Helper()
	errs := &psm.ErrorLog{}
	return NewProcessor(mods.NewDictionary(nil), DefaultOptions(), errs), errs
}

func TestParseLine(t *testing.T) {
	p, errs := newTestProcessor(t)

	rec, kind := p.ParseLine(exampleLine, 1)
	require.Equal(t, psm.DataRow, kind)
	assert.Equal(t, 100, rec.Scan)
	assert.Equal(t, 2, rec.Charge)
	assert.Equal(t, "K.PEPTIDE.R", rec.PeptideWithMods)
	assert.Equal(t, "PEPTIDE", rec.CleanSequence)
	assert.Equal(t, "ProteinA", rec.Protein)
	assert.Equal(t, 60.0, rec.TotalPRMScore)
	assert.Equal(t, 0.15, rec.PValue)
	assert.Equal(t, 1.2, rec.FScore)
	assert.InDelta(t, mass.CleanSequenceMass("PEPTIDE"), rec.MonoMass, 1e-9)
	assert.Zero(t, rec.DelMPPM)
	assert.True(t, errs.Empty())
}

func TestParseLineHeaderAndInvalid(t *testing.T) {
	p, errs := newTestProcessor(t)

	_, kind := p.ParseLine(rawHeader, 0)
	assert.Equal(t, psm.Header, kind)

	// Only the first line may be a header.
	_, kind = p.ParseLine(rawHeader, 3)
	assert.Equal(t, psm.Invalid, kind)

	_, kind = p.ParseLine("a\tb\tc", 5)
	assert.Equal(t, psm.Invalid, kind)
	assert.Equal(t, 2, errs.Entries())
	assert.Contains(t, errs.String(), "line 6: expected at least 15 columns, found 3")

	_, kind = p.ParseLine("   ", 7)
	assert.Equal(t, psm.Invalid, kind)
	assert.Equal(t, 2, errs.Entries())
}

func TestParseLineScanFromSpectrumName(t *testing.T) {
	p, _ := newTestProcessor(t)
	line := strings.Replace(rawLine("0", "K.PEPTIDE.R", "2", "60", "0.1", "1"), "Data.mzXML", "Data.1234.1234.2.dta", 1)

	rec, kind := p.ParseLine(line, 1)
	require.Equal(t, psm.DataRow, kind)
	assert.Equal(t, 1234, rec.Scan)
}

func TestParseLineModifications(t *testing.T) {
	dict := mods.NewDictionary(nil)
	n, err := ParseParams(strings.NewReader("spectra,Data.mzXML\nmod,+16,M\nmod,80,STY,opt,phosphorylation\nmod,57,C,fix\nmod,14,*,nterminal\n"), dict)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	ox := dict.All()[0]
	phos := dict.All()[1]
	nterm := dict.All()[3]
	assert.Equal(t, "+16", ox.Name)
	assert.Equal(t, "phos", phos.Name)

	p := NewProcessor(dict, DefaultOptions(), nil)
	rec, kind := p.ParseLine(rawLine("10", "R.+14HVIFM+16S+80LC+57ER.R", "2", "60", "0.1", "1"), 1)
	require.Equal(t, psm.DataRow, kind)

	want := "R." + string(nterm.Symbol) + "HVIFM" + string(ox.Symbol) + "S" + string(phos.Symbol) + "LCER.R"
	assert.Equal(t, want, rec.PeptideWithMods)
	assert.Equal(t, "HVIFMSLCER", rec.CleanSequence)
	// Three dynamic mods plus static carbamidomethyl on C.
	assert.Len(t, rec.Mods, 4)

	expected := mass.CleanSequenceMass("HVIFMSLCER") + 14 + 16 + 80 + 57
	assert.InDelta(t, expected, rec.MonoMass, 1e-6)
}

func TestParseLineDelMPPM(t *testing.T) {
	p, _ := newTestProcessor(t)
	mono := mass.CleanSequenceMass("PEPTIDE")
	mz := (mono + 2*mass.Proton) / 2

	line := rawLine("100", "K.PEPTIDE.R", "2", "60", "0.1", "1") + "\t" + psm.FormatFloat(mz, 6) + "\t0"
	rec, kind := p.ParseLine(line, 1)
	require.Equal(t, psm.DataRow, kind)
	assert.InDelta(t, 0, rec.DelMPPM, 1)
	assert.InDelta(t, mono+mass.Proton, rec.MH, 1e-9)
}

func runProcess(t *testing.T, p *Processor, input string) (psm.Stats, string, string) {
	t.Helper()
	in, err := lineio.NewReader(strings.NewReader(input))
	require.NoError(t, err)

	var synBuf, fhtBuf bytes.Buffer
	syn := output.NewTabWriter(&synBuf, SynopsisColumns)
	fht := output.NewTabWriter(&fhtBuf, SynopsisColumns)
	stats, err := p.Process(context.Background(), in, syn, fht)
	require.NoError(t, err)
	require.NoError(t, syn.Flush())
	require.NoError(t, fht.Flush())
	return stats, synBuf.String(), fhtBuf.String()
}

func rows(text string) [][]string {
	var out [][]string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line != "" {
			out = append(out, strings.Split(line, "\t"))
		}
	}
	return out
}

func column(name string) int {
	for i, c := range SynopsisColumns {
		if c == name {
			return i
		}
	}
	return -1
}

func TestProcessRanksAndFilters(t *testing.T) {
	p, _ := newTestProcessor(t)
	input := strings.Join([]string{
		rawHeader,
		exampleLine,
		rawLine("100", "K.PEPTIDES.R", "2", "60", "0.5", "1.2"),
		rawLine("100", "K.PEPTIDER.R", "2", "10", "0.5", "-1"),
		rawLine("101", "K.SAMPLER.R", "3", "20", "0.9", "-2"),
		"a\tb\tc",
	}, "\n") + "\n"

	stats, synText, fhtText := runProcess(t, p, input)
	assert.Equal(t, 6, stats.Lines)
	assert.Equal(t, 4, stats.Results)
	assert.Equal(t, 1, stats.Invalid)

	syn := rows(synText)
	// The two TotalPRMScore 60 hits pass; the weak ones fail every threshold.
	require.Len(t, syn, 2)
	assert.Equal(t, 2, stats.Synopsis)

	rankCol := column("RankTotalPRMScore")
	for _, row := range syn {
		assert.Equal(t, "1", row[rankCol], "tied scores share rank 1")
		assert.Equal(t, "100", row[column("Scan")])
	}
	assert.Equal(t, "1", syn[0][column("ResultID")])
	assert.Equal(t, "2", syn[1][column("ResultID")])
	assert.Equal(t, "ProteinA", syn[1][column("Protein")])

	fht := rows(fhtText)
	require.Len(t, fht, 2)
	assert.Equal(t, "100", fht[0][column("Scan")])
	assert.Equal(t, "101", fht[1][column("Scan")])
	assert.Equal(t, "K.SAMPLER.R", fht[1][column("Peptide")])
	assert.Equal(t, 2, stats.FirstHits)
}

func TestProcessDeltaNormAndFScoreRank(t *testing.T) {
	p, _ := newTestProcessor(t)
	input := strings.Join([]string{
		rawLine("7", "K.AAAK.R", "2", "80", "0.01", "0.5"),
		rawLine("7", "K.CCCK.R", "2", "40", "0.01", "2.5"),
	}, "\n")

	_, synText, _ := runProcess(t, p, input)
	syn := rows(synText)
	require.Len(t, syn, 2)

	// Sorted by TotalPRMScore.
	assert.Equal(t, "K.AAAK.R", syn[0][column("Peptide")])
	assert.Equal(t, "1", syn[0][column("RankTotalPRMScore")])
	assert.Equal(t, "2", syn[0][column("RankFScore")])
	assert.Equal(t, "2", syn[1][column("RankTotalPRMScore")])
	assert.Equal(t, "1", syn[1][column("RankFScore")])
	assert.Equal(t, "0.5", syn[0][column("DeltaNormTotalPRMScore")])
	assert.Equal(t, "0", syn[1][column("DeltaNormTotalPRMScore")])
}

func TestProcessCancelled(t *testing.T) {
	p, _ := newTestProcessor(t)
	in, err := lineio.NewReader(strings.NewReader(exampleLine + "\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var synBuf bytes.Buffer
	syn := output.NewTabWriter(&synBuf, SynopsisColumns)
	_, err = p.Process(ctx, in, syn, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, syn.Flush())
	assert.Empty(t, synBuf.String())
}

func TestParseParamsErrors(t *testing.T) {
	_, err := ParseParams(strings.NewReader("mod,abc,M\n"), mods.NewDictionary(nil))
	assert.ErrorContains(t, err, "invalid mass")

	_, err = ParseParams(strings.NewReader("mod,16,M,sometimes\n"), mods.NewDictionary(nil))
	assert.ErrorContains(t, err, "unknown modification type")

	_, err = ParseParams(strings.NewReader("mod,16\n"), mods.NewDictionary(nil))
	assert.ErrorContains(t, err, "needs mass and residues")
}

func TestProcessRanksInterleavedCharges(t *testing.T) {
	p, _ := newTestProcessor(t)
	input := strings.Join([]string{
		rawLine("100", "K.AAAK.R", "2", "80", "0.01", "1"),
		rawLine("100", "K.CCCK.R", "3", "70", "0.01", "1"),
		rawLine("100", "K.DDDK.R", "2", "60", "0.01", "1"),
		rawLine("101", "K.EEEK.R", "2", "55", "0.01", "1"),
	}, "\n") + "\n"

	_, synText, fhtText := runProcess(t, p, input)
	syn := rows(synText)
	require.Len(t, syn, 4)

	type ranked struct{ peptide, charge, rank string }
	var got []ranked
	for _, row := range syn {
		got = append(got, ranked{row[column("Peptide")], row[column("Charge")], row[column("RankTotalPRMScore")]})
	}
	assert.Equal(t, []ranked{
		{"K.AAAK.R", "2", "1"},
		{"K.DDDK.R", "2", "2"},
		{"K.CCCK.R", "3", "1"},
		{"K.EEEK.R", "2", "1"},
	}, got)
	assert.Equal(t, "0.25", syn[0][column("DeltaNormTotalPRMScore")])

	// One first hit per charge of scan 100, then scan 101.
	assert.Len(t, rows(fhtText), 3)
}

func TestParseLineRejectedTerminalMod(t *testing.T) {
	dict := mods.NewDictionary(nil)
	_, err := ParseParams(strings.NewReader("mod,14,*,nterminal\nmod,42,*,nterminal\n"), dict)
	require.NoError(t, err)
	first, second := dict.All()[0], dict.All()[1]

	errs := &psm.ErrorLog{}
	p := NewProcessor(dict, DefaultOptions(), errs)
	rec, kind := p.ParseLine(rawLine("10", "R.+14+42PEPTIDE.R", "2", "60", "0.1", "1"), 4)
	require.Equal(t, psm.DataRow, kind)

	require.Len(t, rec.Mods, 1)
	assert.Same(t, first, rec.Mods[0].Def)
	assert.Equal(t, 1, errs.Entries())
	assert.Contains(t, errs.String(), "line 5: scan 10: ")
	assert.Contains(t, errs.String(), "already modified")

	// The peptide only carries the modification that was kept.
	assert.Contains(t, rec.PeptideWithMods, string(first.Symbol))
	assert.NotContains(t, rec.PeptideWithMods, string(second.Symbol))
	assert.Equal(t, "PEPTIDE", rec.CleanSequence)
	assert.InDelta(t, mass.CleanSequenceMass("PEPTIDE")+first.Mass, rec.MonoMass, 1e-6)
}
