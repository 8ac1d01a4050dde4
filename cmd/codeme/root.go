package main

import (
	"fmt"

	"codeme/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root codeme command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "codeme",
		Short:         "Voice and text driven coding assistant",
		Long:          "codeme is the single entry point for the coding assistant.\nIt runs the command loop and inspects its projects, deployments and event log.",
		Version:       fmt.Sprintf("codeme %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newRunCmd(),
		newProjectsCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newDashCmd(),
	)

	return cmd
}
