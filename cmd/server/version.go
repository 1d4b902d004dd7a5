package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"approval-routing/internal/api"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", api.ServiceName, api.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
