package synopsis

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-phrp/internal/lineio"
	"github.com/inodb/vibe-phrp/internal/mods"
	"github.com/inodb/vibe-phrp/internal/psm"
)

var testLayout = Layout{
	ResultID:       "ResultID",
	Scan:           "Scan",
	Charge:         "Charge",
	Peptide:        "Peptide",
	Protein:        "Protein",
	PrimaryScore:   "Score",
	SecondaryScore: "Other",
	Rank:           "Rank",
}

func newReader(t *testing.T, text string, dict *mods.Dictionary) (*Reader, error) {
	t.Helper()
	in, err := lineio.NewReader(strings.NewReader(text))
	require.NoError(t, err)
	return NewReader(in, testLayout, dict)
}

func TestReader(t *testing.T) {
	dict := mods.NewDictionary(nil)
	ox, err := dict.Add(mods.Definition{Mass: 15.994915, TargetResidues: "M", Type: mods.Dynamic})
	require.NoError(t, err)
	_, err = dict.Add(mods.Definition{Mass: 57.021464, TargetResidues: "C", Type: mods.Static})
	require.NoError(t, err)

	text := "Scan\tResultID\tCharge\tPeptide\tProtein\tScore\tOther\tRank\n" +
		"100\t1\t2\tK.CM" + string(ox.Symbol) + "K.A\tProtA extra\t60\t1.5\t1\n" +
		"\n" +
		"101\t2\t3\t-.PEPTIDE.-\tProtB\t55\t0.5\t2\n"

	r, err := newReader(t, text, dict)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Columns().ResultID)
	assert.Equal(t, 0, r.Columns().Scan)
	assert.Equal(t, -1, r.Columns().DelMPPM)

	res, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ResultID)
	assert.Equal(t, 100, res.Scan)
	assert.Equal(t, 2, res.Charge)
	assert.Equal(t, "CMK", res.CleanSequence)
	assert.Equal(t, "ProtA", res.Protein)
	assert.Equal(t, 60.0, res.PrimaryScore)
	assert.Equal(t, 1.5, res.SecondaryScore)
	assert.Len(t, res.Mods, 2)
	assert.Equal(t, "IodoAcet:1,Plus1Oxy:2", res.ModDescription())

	res, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rank)
	assert.Equal(t, byte('-'), res.Prefix)

	res, err = r.Next()
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestReaderMissingColumn(t *testing.T) {
	_, err := newReader(t, "Scan\tCharge\tPeptide\tProtein\tScore\n", mods.NewDictionary(nil))
	var perr *lineio.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, perr.Message, "'ResultID'")
}

func TestReaderEmpty(t *testing.T) {
	_, err := newReader(t, "", mods.NewDictionary(nil))
	assert.ErrorContains(t, err, "no header line found")
}

func TestReaderMissingPeptide(t *testing.T) {
	r, err := newReader(t, "ResultID\tScan\tCharge\tPeptide\tProtein\tScore\n1\t2\t2\t\tProtA\t5\n", mods.NewDictionary(nil))
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorContains(t, err, "parse error at line 2: missing peptide")
}

func TestReaderLogsRejectedMods(t *testing.T) {
	dict := mods.NewDictionary(nil)
	first, err := dict.Add(mods.Definition{Mass: 14.01565, TargetResidues: "<", Type: mods.Dynamic})
	require.NoError(t, err)
	second, err := dict.Add(mods.Definition{Mass: 42.010565, TargetResidues: "<", Type: mods.Dynamic})
	require.NoError(t, err)

	text := "ResultID\tScan\tCharge\tPeptide\tProtein\tScore\n" +
		"7\t100\t2\tR." + string(first.Symbol) + string(second.Symbol) + "PEPTIDE.R\tProtA\t60\n"
	r, err := newReader(t, text, dict)
	require.NoError(t, err)
	errs := &psm.ErrorLog{}
	r.SetErrorLog(errs)

	res, err := r.Next()
	require.NoError(t, err)
	require.Len(t, res.Mods, 1)
	assert.NotContains(t, res.PeptideWithMods, string(second.Symbol))
	assert.Equal(t, 1, errs.Entries())
	assert.Contains(t, errs.String(), "result 7: ")
}
