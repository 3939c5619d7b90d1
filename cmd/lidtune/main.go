package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cognicore/lidtune/pkg/lidtune/config"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
	"github.com/cognicore/lidtune/pkg/lidtune/store/sqlite"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lidtune",
		Short:         "Character n-gram language identifier with hyperparameter search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if off, _ := cmd.Flags().GetBool("no-color"); off {
				color.NoColor = true
			}
		},
	}
	root.AddCommand(newTuneCmd())
	root.AddCommand(newIdentifyCmd())
	root.AddCommand(newRunsCmd())

	root.PersistentFlags().String("config", "", "YAML configuration file")
	root.PersistentFlags().String("journal", "", "SQLite journal of evaluated configurations")
	root.PersistentFlags().Bool("quiet", false, "suppress progress logging")
	root.PersistentFlags().Bool("no-color", false, "disable colored output")
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "lidtune:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the flags shared by tune and identify.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("journal") {
		cfg.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("alphabetic") {
		cfg.AlphabeticOnly, _ = flags.GetBool("alphabetic")
	}
	if flags.Changed("nfc") {
		cfg.NFC, _ = flags.GetBool("nfc")
	}
	if flags.Changed("unknown-labels") {
		cfg.UnknownLabels, _ = flags.GetString("unknown-labels")
	}
	if flags.Changed("labels") {
		cfg.Outputs.Labels, _ = flags.GetString("labels")
	}
	if flags.Changed("test-labels") {
		cfg.Outputs.TestLabels, _ = flags.GetString("test-labels")
	}
	if flags.Changed("statistics") {
		cfg.Outputs.Statistics, _ = flags.GetString("statistics")
	}
	if flags.Changed("overrides") {
		overridesPath, _ := flags.GetString("overrides")
		extra, err := config.LoadOverrides(overridesPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Overrides = append(cfg.Overrides, extra...)
	}
	return cfg, cfg.Validate()
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("train", "", "labeled training corpus (label<TAB>text)")
	cmd.Flags().Bool("alphabetic", false, "drop everything but letters before counting n-grams")
	cmd.Flags().Bool("nfc", false, "apply Unicode NFC normalization")
	cmd.Flags().String("unknown-labels", "", "development labels missing from training: reject|skip")
	cmd.Flags().String("overrides", "", "substring override file (language<TAB>substring)")
	cmd.Flags().String("labels", "", "development labels output")
	cmd.Flags().String("test-labels", "", "test labels output")
	cmd.Flags().String("statistics", "", "development statistics output")
	_ = cmd.MarkFlagRequired("train")
}

func openJournal(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return nil, nil
	}
	return sqlite.OpenSQLite(ctx, path)
}

func newLogger(cmd *cobra.Command) *log.Logger {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}
