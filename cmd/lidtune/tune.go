package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/lidtune/pkg/lidtune"
)

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune --train TRAIN --dev DEV [--test TEST]",
		Short: "Search minNgram, maxNgram and smoothing on a development corpus",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("dev", "", "labeled development corpus")
	cmd.Flags().String("test", "", "unlabeled test corpus to label with the best configuration")
	cmd.Flags().Int("workers", 0, "parallel evaluations per round (0 = GOMAXPROCS)")
	cmd.Flags().Int("max-rounds", 0, "stop after this many rounds (0 = until convergence)")
	cmd.Flags().Int("max-ngram-limit", 0, "largest n-gram length the search may try (0 = unbounded)")
	_ = cmd.MarkFlagRequired("dev")
	return cmd
}

func runTune(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-rounds") {
		cfg.MaxRounds, _ = flags.GetInt("max-rounds")
	}
	if flags.Changed("max-ngram-limit") {
		cfg.MaxNgramLimit, _ = flags.GetInt("max-ngram-limit")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	journal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	train, _ := flags.GetString("train")
	dev, _ := flags.GetString("dev")
	test, _ := flags.GetString("test")

	tuner := lidtune.New(lidtune.Options{
		Config:  cfg,
		Journal: journal,
		Logger:  newLogger(cmd),
		Out:     cmd.OutOrStdout(),
	})
	res, err := tuner.Tune(ctx, lidtune.TuneRequest{TrainPath: train, DevPath: dev, TestPath: test})
	if err != nil {
		return err
	}

	best := res.Search.Best
	fmt.Fprintf(cmd.OutOrStdout(), "best: minNgram %d, maxNgram %d, smoothing %g, macro F1 %.6f (%d evaluations, %d rounds)\n",
		best.MinN, best.MaxN, best.Smoothing, res.Final.MacroF1, res.Search.Evaluations, res.Search.Rounds)
	if res.RunID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "run: %s\n", res.RunID)
	}
	return nil
}
