package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/duckdb"
	"github.com/inodb/vibe-phrp/internal/phrp"
)

func TestApplyConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults(phrp.DefaultOptions())
	viper.Set(keyInSpecTTotalPRM, "40")
	viper.Set(keyXTandemPrecision, 2)
	viper.Set(keyAdjustC13, false)
	viper.Set(keyStoreDuckDB, "/tmp/results.duckdb")

	opts := phrp.DefaultOptions()
	applyConfig(&opts)

	assert.Equal(t, 40.0, opts.InSpecT.TotalPRMScoreThreshold)
	assert.Equal(t, 0.2, opts.InSpecT.PValueThreshold)
	assert.Equal(t, 2, opts.XTandem.Precision)
	assert.Equal(t, 2, opts.MODa.Precision)
	assert.False(t, opts.MODa.AdjustC13)
	assert.Equal(t, "/tmp/results.duckdb", opts.StorePath)
}

func TestApplyConfigKeepsFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(keyExportSQLite, "config.sqlite")

	opts := phrp.DefaultOptions()
	opts.SQLitePath = "flag.sqlite"
	applyConfig(&opts)
	assert.Equal(t, "flag.sqlite", opts.SQLitePath)
}

func TestWriteStoredResults(t *testing.T) {
	var buf bytes.Buffer
	err := writeStoredResults(&buf, []duckdb.StoredResult{{
		Dataset: "DS", ResultID: 1, Scan: 100, Charge: 2, Peptide: "K.PEPTIDEK.A",
		Protein: "ProtA", UniqueSeqID: 1, MonoMass: 927.4549, Rank: 1,
		PrimaryScore: 60, SecondaryScore: 1, MultipleProteinCount: 1,
	}})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.True(t, bytes.HasPrefix(lines[0], []byte("Dataset\tResult_ID\t")))
	assert.True(t, bytes.HasPrefix(lines[1], []byte("DS\t1\t100\t2\tK.PEPTIDEK.A\tProtA\t1\t")))
	assert.True(t, bytes.HasSuffix(lines[1], []byte("\t60\t1\t1")))
}

func TestProcessCommand(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	input := filepath.Join(dir, "Sample_inspect.txt")
	line := "Data.mzXML\t100\tK.PEPTIDEK.A\tProtA\t2\t1.5\t8\t60\t30\t0.5\t0.5\t1000\t2\t0.1\t1\t0.1\t0.05\t1\t0\t0\n"
	require.NoError(t, os.WriteFile(input, []byte(line), 0o644))
	store := filepath.Join(dir, "results.duckdb")

	root := newRootCmd()
	root.SetArgs([]string{"process", "-t", "inspect", "--duckdb", store, input})
	require.NoError(t, root.Execute())

	for _, suffix := range []string{"_syn.txt", "_fht.txt", "_syn_SeqInfo.txt", "_syn_ModSummary.txt"} {
		_, err := os.Stat(filepath.Join(dir, "Sample_inspect"+suffix))
		assert.NoError(t, err, suffix)
	}

	kept, err := filterUnchanged(store, []string{input}, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestProcessCommandBadTool(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	root := newRootCmd()
	root.SetArgs([]string{"process", "-t", "mascot", "in.txt"})
	err := root.Execute()
	var usage *usageError
	assert.ErrorAs(t, err, &usage)
}
