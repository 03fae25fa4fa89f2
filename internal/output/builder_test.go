package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/psm"
)

type tables struct {
	r2s, info, details, s2p bytes.Buffer
}

func (tb *tables) writers() Writers {
	return Writers{ResultToSeqMap: &tb.r2s, SeqInfo: &tb.info, ModDetails: &tb.details, SeqToProteinMap: &tb.s2p}
}

func rows(buf *bytes.Buffer) []string {
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	return lines[1:]
}

type recordingSink struct {
	results   int
	sequences []*UniqueSequence
	proteins  []*SeqProtein
}

func (s *recordingSink) Result(*psm.Result, int) error { s.results++; return nil }
func (s *recordingSink) Sequence(seq *UniqueSequence) error {
	s.sequences = append(s.sequences, seq)
	return nil
}
func (s *recordingSink) SeqProtein(p *SeqProtein) error {
	s.proteins = append(s.proteins, p)
	return nil
}

func result(id, scan, charge int, peptide, clean, protein string, score float64, ms ...psm.AppliedMod) *psm.Result {
	r := &psm.Result{
		ResultID:        id,
		Scan:            scan,
		Charge:          charge,
		PeptideWithMods: peptide,
		CleanSequence:   clean,
		Prefix:          peptide[0],
		Suffix:          peptide[len(peptide)-1],
		Protein:         protein,
		PrimaryScore:    score,
		Mods:            ms,
	}
	r.ComputeMass()
	return r
}

func TestBuilder_CrossReferences(t *testing.T) {
	d := mods.NewDictionary(nil)
	ox, _ := d.Add(mods.Definition{Mass: 15.994915, TargetResidues: "M", Type: mods.Dynamic})
	cam, _ := d.Add(mods.Definition{Mass: 57.021464, TargetResidues: "C", Type: mods.Static})

	var tb tables
	b, err := NewBuilder(tb.writers())
	require.NoError(t, err)
	sink := &recordingSink{}
	b.AddSink(sink)

	oxMod := psm.AppliedMod{Def: ox, Residue: 'M', Position: 2}
	camMod := psm.AppliedMod{Def: cam, Residue: 'C', Position: 2}
	results := []*psm.Result{
		result(1, 100, 2, "R.AM*EPTIDEK.A", "AMEPTIDEK", "ProtA", 60, oxMod),
		// Same match, second protein: shares the result ID.
		result(1, 100, 2, "R.AM*EPTIDEK.A", "AMEPTIDEK", "ProtB", 60, oxMod),
		// Same peptide in a later scan.
		result(2, 200, 2, "R.AM*EPTIDEK.A", "AMEPTIDEK", "ProtA", 55, oxMod),
		// Unmodified form is a different sequence.
		result(3, 300, 2, "R.AMEPTIDEK.A", "AMEPTIDEK", "ProtA", 50),
		result(4, 400, 3, "R.ACK.-", "ACK", "ProtC", 40, camMod),
	}
	var firsts []bool
	for _, r := range results {
		first, err := b.Add(r)
		require.NoError(t, err)
		firsts = append(firsts, first)
	}
	require.NoError(t, b.Close())

	assert.Equal(t, []bool{true, false, true, true, true}, firsts)
	assert.Equal(t, 3, b.Sequences())

	assert.Equal(t, []string{"1\t1", "2\t1", "3\t2", "4\t3"}, rows(&tb.r2s))

	info := rows(&tb.info)
	require.Len(t, info, 3)
	assert.True(t, strings.HasPrefix(info[0], "1\t1\tPlus1Oxy:2\t"))
	assert.True(t, strings.HasPrefix(info[1], "2\t0\t\t"))
	fields := strings.Split(info[0], "\t")
	assert.Len(t, strings.Split(fields[3], ".")[1], 7)

	assert.Equal(t, []string{"1\tPlus1Oxy\t2", "3\tIodoAcet\t2"}, rows(&tb.details))

	s2p := rows(&tb.s2p)
	assert.Equal(t, []string{
		"1\t2\t0\tProtA\t0\t0",
		"1\t2\t0\tProtB\t0\t0",
		"2\t2\t0\tProtA\t0\t0",
		"3\t2\t2\tProtC\t0\t0",
	}, s2p)

	assert.Equal(t, 5, sink.results)
	assert.Len(t, sink.sequences, 3)
	assert.Len(t, sink.proteins, 4)
}

func TestBuilder_SeenSetResetsOnScoreTier(t *testing.T) {
	var tb tables
	b, err := NewBuilder(tb.writers())
	require.NoError(t, err)

	r1 := result(1, 100, 2, "K.PEPTIDE.R", "PEPTIDE", "ProtA", 60)
	r2 := result(2, 100, 2, "K.PEPTIDE.R", "PEPTIDE", "ProtB", 50)
	r3 := result(3, 100, 2, "K.PEPTIDE.R", "PEPTIDE", "ProtC", 60)

	assert.True(t, b.FirstOccurrence(r1))
	assert.False(t, b.FirstOccurrence(r1))
	// A new score tier starts a fresh seen set.
	assert.True(t, b.FirstOccurrence(r2))
	assert.True(t, b.FirstOccurrence(r3))
}

func TestBuilder_SequenceIDDeterminism(t *testing.T) {
	d := mods.NewDictionary(nil)
	ox, _ := d.Add(mods.Definition{Mass: 15.994915, TargetResidues: "M", Type: mods.Dynamic})

	var tb tables
	b, err := NewBuilder(tb.writers())
	require.NoError(t, err)
	sink := &recordingSink{}
	b.AddSink(sink)

	peptides := []*psm.Result{
		result(1, 1, 2, "K.MMK.R", "MMK", "P1", 9, psm.AppliedMod{Def: ox, Position: 1}),
		result(2, 2, 2, "K.MMK.R", "MMK", "P2", 8, psm.AppliedMod{Def: ox, Position: 2}),
		result(3, 3, 2, "K.MMK.R", "MMK", "P3", 7, psm.AppliedMod{Def: ox, Position: 1}),
		result(4, 4, 2, "K.MMK.R", "MMK", "P4", 6),
	}
	for _, r := range peptides {
		_, err := b.Add(r)
		require.NoError(t, err)
	}
	require.NoError(t, b.Flush())

	assert.Equal(t, []string{"1\t1", "2\t2", "3\t1", "4\t3"}, rows(&tb.r2s))
}

func TestBuilder_AddProtein(t *testing.T) {
	var tb tables
	b, err := NewBuilder(tb.writers())
	require.NoError(t, err)

	r := result(1, 100, 2, "K.SAMPLER.-", "SAMPLER", "ProtA", 60)
	r.ProteinExpectationLog = -3.5
	_, err = b.Add(r)
	require.NoError(t, err)
	require.NoError(t, b.AddProtein(r, "ProtB"))
	require.NoError(t, b.AddProtein(r, "ProtA"))
	require.NoError(t, b.Flush())

	assert.Equal(t, 1, b.Sequences())
	assert.Equal(t, []string{
		"1\t2\t2\tProtA\t-3.5\t0",
		"1\t2\t2\tProtB\t0\t0",
	}, rows(&tb.s2p))
}

func TestWriteModSummary(t *testing.T) {
	d := mods.NewDictionary(nil)
	ox, _ := d.Add(mods.Definition{Mass: 15.994915, TargetResidues: "M", Type: mods.Dynamic})
	_, _ = d.Add(mods.Definition{Mass: 57.021464, TargetResidues: "C", Type: mods.Static})
	unused := d.LookupOrDefine(53.8, 'K', mods.NotTerminal, 1)
	d.RegisterOccurrence(ox)
	d.RegisterOccurrence(ox)

	var buf bytes.Buffer
	require.NoError(t, WriteModSummary(&buf, d.SummaryDefinitions()))

	lines := rows(&buf)
	assert.Equal(t, []string{
		"*\t15.994915\tM\tD\tPlus1Oxy\t2",
		"-\t57.021464\tC\tS\tIodoAcet\t0",
	}, lines)
	assert.NotContains(t, buf.String(), unused.Tag)
}
