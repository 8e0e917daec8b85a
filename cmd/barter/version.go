package main

import (
	"fmt"

	"github.com/aretw0/barter"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of barter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "barter version %s\n", barter.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
