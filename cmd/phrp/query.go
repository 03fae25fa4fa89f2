package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-phrp/internal/duckdb"
	"github.com/inodb/vibe-phrp/internal/psm"
)

func newQueryCmd() *cobra.Command {
	var (
		storePath string
		dataset   string
		scan      int
		protein   string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Look up stored results in a DuckDB database",
		Example: `  phrp query --duckdb results.duckdb --dataset Dataset_inspect --scan 1500
  phrp query --duckdb results.duckdb --protein Prot1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				storePath = viper.GetString(keyStoreDuckDB)
			}
			if storePath == "" {
				return &usageError{msg: "--duckdb is required (or set store.duckdb)"}
			}
			if protein == "" && (dataset == "" || scan < 0) {
				return &usageError{msg: "give --protein, or --dataset with --scan"}
			}

			store, err := duckdb.Open(storePath)
			if err != nil {
				return fmt.Errorf("opening result store: %w", err)
			}
			defer store.Close()

			var results []duckdb.StoredResult
			if protein != "" {
				results, err = store.ResultsByProtein(protein)
			} else {
				results, err = store.ResultsByScan(dataset, scan)
			}
			if err != nil {
				return err
			}
			return writeStoredResults(os.Stdout, results)
		},
	}

	cmd.Flags().StringVar(&storePath, "duckdb", "", "DuckDB database written by process --duckdb")
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset name (input file name without extension)")
	cmd.Flags().IntVar(&scan, "scan", -1, "Scan number")
	cmd.Flags().StringVar(&protein, "protein", "", "Protein name")

	return cmd
}

var storedColumns = []string{
	"Dataset", "Result_ID", "Scan", "Charge", "Peptide", "Protein",
	"Unique_Seq_ID", "Mod_Description", "Monoisotopic_Mass", "DelM_PPM",
	"Rank", "Primary_Score", "Secondary_Score", "Multiple_Protein_Count",
}

func writeStoredResults(w io.Writer, results []duckdb.StoredResult) error {
	if _, err := fmt.Fprintln(w, strings.Join(storedColumns, "\t")); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Dataset,
			strconv.Itoa(r.ResultID),
			strconv.Itoa(r.Scan),
			strconv.Itoa(r.Charge),
			r.Peptide,
			r.Protein,
			strconv.Itoa(r.UniqueSeqID),
			r.ModDescription,
			psm.FormatFloat(r.MonoMass, 5),
			psm.FormatFloat(r.DelMPPM, 4),
			strconv.Itoa(r.Rank),
			strconv.FormatFloat(r.PrimaryScore, 'g', -1, 64),
			strconv.FormatFloat(r.SecondaryScore, 'g', -1, 64),
			strconv.Itoa(r.MultipleProteinCount),
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}
