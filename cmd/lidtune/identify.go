package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/lidtune/pkg/lidtune"
)

func newIdentifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify --train TRAIN --test TEST",
		Short: "Label a corpus with fixed hyperparameters",
		Args:  cobra.NoArgs,
		RunE:  runIdentify,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("test", "", "corpus to label")
	cmd.Flags().String("dev", "", "labeled development corpus to score alongside")
	cmd.Flags().Int("min", 0, "minimum n-gram length (default from config)")
	cmd.Flags().Int("max", 0, "maximum n-gram length (default from config)")
	cmd.Flags().Float64("smoothing", 0, "unseen n-gram penalty multiplier (default from config)")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

func runIdentify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("min") {
		cfg.Final.MinNgram, _ = flags.GetInt("min")
	}
	if flags.Changed("max") {
		cfg.Final.MaxNgram, _ = flags.GetInt("max")
	}
	if flags.Changed("smoothing") {
		cfg.Final.Smoothing, _ = flags.GetFloat64("smoothing")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	train, _ := flags.GetString("train")
	test, _ := flags.GetString("test")
	dev, _ := flags.GetString("dev")

	tuner := lidtune.New(lidtune.Options{Config: cfg, Logger: newLogger(cmd)})
	res, err := tuner.Identify(cmd.Context(), lidtune.IdentifyRequest{TrainPath: train, TestPath: test, DevPath: dev})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "labeled %d lines into %s\n", len(res.TestLabels), cfg.Outputs.TestLabels)
	if res.Dev != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "development macro F1 %.6f\n", res.Dev.MacroF1)
	}
	return nil
}
