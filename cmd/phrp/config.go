package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-phrp/internal/phrp"
)

// Configuration keys.
const (
	keyInSpecTTotalPRM  = "inspect.total_prm_threshold"
	keyInSpecTFScore    = "inspect.fscore_threshold"
	keyInSpecTPValue    = "inspect.pvalue_threshold"
	keyInSpecTPrecision = "inspect.precision"
	keyMODaProbability  = "moda.probability_threshold"
	keyMODaScore        = "moda.score_threshold"
	keyMODaPrecision    = "moda.precision"
	keyXTandemExpect    = "xtandem.expect_log_threshold"
	keyXTandemHyper     = "xtandem.hyperscore_threshold"
	keyXTandemPrecision = "xtandem.precision"
	keyAdjustC13        = "mass.adjust_c13"
	keyStoreDuckDB      = "store.duckdb"
	keyExportSQLite     = "export.sqlite"
)

func setDefaults(o phrp.Options) {
	viper.SetDefault(keyInSpecTTotalPRM, o.InSpecT.TotalPRMScoreThreshold)
	viper.SetDefault(keyInSpecTFScore, o.InSpecT.FScoreThreshold)
	viper.SetDefault(keyInSpecTPValue, o.InSpecT.PValueThreshold)
	viper.SetDefault(keyInSpecTPrecision, o.InSpecT.Precision)
	viper.SetDefault(keyMODaProbability, o.MODa.ProbabilityThreshold)
	viper.SetDefault(keyMODaScore, o.MODa.ScoreThreshold)
	viper.SetDefault(keyMODaPrecision, o.MODa.Precision)
	viper.SetDefault(keyXTandemExpect, o.XTandem.ExpectLogThreshold)
	viper.SetDefault(keyXTandemHyper, o.XTandem.HyperscoreThreshold)
	viper.SetDefault(keyXTandemPrecision, o.XTandem.Precision)
	viper.SetDefault(keyAdjustC13, o.InSpecT.AdjustC13)
}

// applyConfig copies the configured thresholds into o.
func applyConfig(o *phrp.Options) {
	adjust := viper.GetBool(keyAdjustC13)

	o.InSpecT.TotalPRMScoreThreshold = viper.GetFloat64(keyInSpecTTotalPRM)
	o.InSpecT.FScoreThreshold = viper.GetFloat64(keyInSpecTFScore)
	o.InSpecT.PValueThreshold = viper.GetFloat64(keyInSpecTPValue)
	o.InSpecT.Precision = viper.GetInt(keyInSpecTPrecision)
	o.InSpecT.AdjustC13 = adjust

	o.MODa.ProbabilityThreshold = viper.GetFloat64(keyMODaProbability)
	o.MODa.ScoreThreshold = viper.GetFloat64(keyMODaScore)
	o.MODa.Precision = viper.GetInt(keyMODaPrecision)
	o.MODa.AdjustC13 = adjust

	o.XTandem.ExpectLogThreshold = viper.GetFloat64(keyXTandemExpect)
	o.XTandem.HyperscoreThreshold = viper.GetFloat64(keyXTandemHyper)
	o.XTandem.Precision = viper.GetInt(keyXTandemPrecision)
	o.XTandem.AdjustC13 = adjust

	if o.StorePath == "" {
		o.StorePath = viper.GetString(keyStoreDuckDB)
	}
	if o.SQLitePath == "" {
		o.SQLitePath = viper.GetString(keyExportSQLite)
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage phrp configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.phrp.yaml.",
		Example: `  phrp config                                    # show all config
  phrp config set inspect.total_prm_threshold 40  # lower the InSpecT threshold
  phrp config set store.duckdb ~/phrp.duckdb      # keep every result in DuckDB
  phrp config get xtandem.precision               # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

func runConfigShow() error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Println("# No configuration set. Config file: ~/.phrp.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigSet(key, value string) error {
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		viper.Set(key, value)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".phrp.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}
