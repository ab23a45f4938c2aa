package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MJE43/vision-guard-go/internal/api"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := api.GetVersionInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "visionguard %s (commit %s, built %s)\n", v.EngineVersion, v.GitCommit, v.BuildTime)
	},
}
