package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-phrp/internal/duckdb"
	"github.com/inodb/vibe-phrp/internal/phrp"
)

type processFlags struct {
	tool          string
	params        string
	requireParams bool
	tags          string
	modDefs       string
	pepToProtMap  string
	fasta         string
	outputDir     string
	store         string
	sqlite        string
	workers       int
	noFirstHits   bool
	skipUnchanged bool
}

func newProcessCmd() *cobra.Command {
	var f processFlags

	cmd := &cobra.Command{
		Use:   "process [flags] <input-file>...",
		Short: "Convert search-engine results into PHRP tables",
		Long: `Convert InSpecT, MODa or X!Tandem results into synopsis and first-hits
files and the ResultToSeqMap, SeqInfo, ModDetails, SeqToProteinMap and
ModSummary cross-reference tables. Outputs are written next to each input
unless --output is given. Gzipped inputs are read transparently.`,
		Example: `  phrp process -t inspect -p inspect_params.txt Dataset_inspect.txt
  phrp process -t moda -p moda_params.txt --fasta db.fasta Dataset_moda.txt
  phrp process -t xtandem Dataset_xt.xml.gz
  phrp process -t xtandem -j 4 --duckdb results.duckdb *_xt.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.tool, "tool", "t", "", "Search engine: inspect, moda or xtandem (required)")
	fl.StringVarP(&f.params, "params", "p", "", "Search engine parameter file")
	fl.BoolVar(&f.requireParams, "require-params", false, "Fail when the parameter file is missing")
	fl.StringVar(&f.tags, "tags", "", "Mass correction tags file")
	fl.StringVar(&f.modDefs, "moddefs", "", "Modification definitions file")
	fl.StringVar(&f.pepToProtMap, "map", "", "Peptide to protein map file")
	fl.StringVar(&f.fasta, "fasta", "", "Protein FASTA used to build the peptide to protein map")
	fl.StringVarP(&f.outputDir, "output", "o", "", "Output directory (default: input directory)")
	fl.StringVar(&f.store, "duckdb", "", "DuckDB database receiving every result")
	fl.StringVar(&f.sqlite, "sqlite", "", "SQLite database receiving the cross-reference tables")
	fl.IntVarP(&f.workers, "workers", "j", 0, "Parallel input files (0 = all CPUs)")
	fl.BoolVar(&f.noFirstHits, "no-first-hits", false, "Do not write the first-hits file")
	fl.BoolVar(&f.skipUnchanged, "skip-unchanged", false, "Skip inputs already stored unchanged in the DuckDB database")
	_ = cmd.MarkFlagRequired("tool")

	return cmd
}

func runProcess(ctx context.Context, f processFlags, inputs []string) error {
	tool, err := phrp.ParseTool(f.tool)
	if err != nil {
		return &usageError{msg: err.Error()}
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := phrp.DefaultOptions()
	base.Tool = tool
	base.ParameterFile = f.params
	base.ParameterFileRequired = f.requireParams
	base.MassCorrectionTagsFile = f.tags
	base.ModDefsFile = f.modDefs
	base.PepToProtMapFile = f.pepToProtMap
	base.FASTAFile = f.fasta
	base.OutputDir = f.outputDir
	base.FirstHits = !f.noFirstHits
	base.StorePath = f.store
	base.SQLitePath = f.sqlite
	applyConfig(&base)

	if f.skipUnchanged && base.StorePath != "" {
		inputs, err = filterUnchanged(base.StorePath, inputs, logger)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			fmt.Fprintln(os.Stderr, "All inputs are up to date")
			return nil
		}
	}

	runs := make([]phrp.Options, len(inputs))
	for i, in := range inputs {
		runs[i] = base
		runs[i].InputPath = in
	}

	workers := f.workers
	// Runs sharing a database file take turns.
	if base.StorePath != "" || base.SQLitePath != "" {
		workers = 1
	}
	if len(runs) == 1 {
		sum, err := phrp.Run(ctx, runs[0], logger)
		if err != nil {
			return err
		}
		printSummary(sum)
		return nil
	}

	var failed []string
	err = phrp.OrderedCollect(phrp.RunAll(ctx, runs, workers, logger), func(r phrp.WorkResult) error {
		if r.Err != nil {
			logger.Error("processing failed", zap.String("input", r.Input), zap.Error(r.Err))
			failed = append(failed, r.Input)
			return nil
		}
		printSummary(r.Summary)
		return nil
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", phrp.ErrAborted, err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d inputs failed: %s", len(failed), len(runs), strings.Join(failed, ", "))
	}
	return nil
}

// filterUnchanged drops inputs whose size and modification time match the
// run recorded for their dataset.
func filterUnchanged(storePath string, inputs []string, logger *zap.Logger) ([]string, error) {
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		return inputs, nil
	}
	store, err := duckdb.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}
	defer store.Close()

	var out []string
	for _, in := range inputs {
		fp, err := duckdb.StatFile(in)
		if err != nil {
			out = append(out, in)
			continue
		}
		current, err := store.Current(phrp.DatasetName(in), fp)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", in, err)
		}
		if current {
			logger.Info("skipping unchanged input", zap.String("input", in))
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func printSummary(sum *phrp.Summary) {
	fmt.Fprintf(os.Stderr, "%s (%s): %d lines, %d results, %d synopsis, %d first hits, %d sequences, %d protein rows\n",
		sum.Dataset, sum.Tool, sum.Stats.Lines, sum.Stats.Results, sum.Stats.Synopsis,
		sum.Stats.FirstHits, sum.Sequences, sum.Proteins)
	for _, w := range sum.Warnings {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
	}
	if sum.Stats.Invalid > 0 {
		fmt.Fprintf(os.Stderr, "  %d invalid lines skipped\n", sum.Stats.Invalid)
	}
}
