package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/barter/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts a stateless barter instance exposing the exchange as a JSON API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
			cfg.SeedFile = seed
		}
		logger, err := cli.CreateLogger(cfg.LogLevel)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.Serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (env BARTER_ADDR)")
	serveCmd.Flags().String("seed", "", "YAML file of items to create at startup (env BARTER_SEED_FILE)")
}
