package main

import (
	"fmt"
	"os"

	"github.com/aretw0/barter/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "barter",
	Short: "Barter is a peer-to-peer item exchange service",
	Long: `Barter lets accounts propose swaps of the items they own and settles
accepted proposals atomically against a shared store (memory, redis or sqlite).

Configuration is read from BARTER_* environment variables; flags override them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory, redis or sqlite (env BARTER_STORE)")
	rootCmd.PersistentFlags().String("sqlite-path", "", "SQLite database file (env BARTER_SQLITE_PATH)")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address (env BARTER_REDIS_ADDR)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (env BARTER_LOG_LEVEL)")
}

// loadConfig reads the environment and applies any flag that was set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("sqlite-path") {
		cfg.SQLitePath, _ = flags.GetString("sqlite-path")
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr, _ = flags.GetString("redis-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.Addr, _ = flags.GetString("addr")
	}
	return cfg, cfg.Validate()
}
