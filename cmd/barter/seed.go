package main

import (
	"fmt"

	"github.com/aretw0/barter/internal/cli"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load items from a YAML file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := cli.CreateLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		res, err := cli.Seed(cmd.Context(), cfg, args[0], logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items (%d already present)\n", res.Created, res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
