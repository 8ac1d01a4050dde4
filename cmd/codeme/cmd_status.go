package main

import (
	"fmt"
	"io"
	"sort"

	"codeme/pkg/deploy"

	"github.com/spf13/cobra"
)

// newStatusCmd creates the "codeme status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [environment]",
		Short: "Show deployment status",
		Long:  "Displays the active deployment and recent history for each environment,\nor for a single environment when one is named.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			// Status reads only the status file; no project state needed.
			status, err := deploy.NewHandler(paths.DeploysRoot, nil).Status()
			if err != nil {
				return fmt.Errorf("load deployment status: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				env, ok := status[args[0]]
				if !ok {
					return fmt.Errorf("no deployments for environment %q", args[0])
				}
				printEnvStatus(w, args[0], env)
				return nil
			}

			if len(status) == 0 {
				fmt.Fprintln(w, "no deployments recorded")
				return nil
			}

			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				printEnvStatus(w, name, status[name])
			}
			return nil
		},
	}
}

func printEnvStatus(w io.Writer, name string, env *deploy.EnvStatus) {
	fmt.Fprintf(w, "%s:\n", name)
	if env.Current == nil {
		fmt.Fprintln(w, "  no active deployment")
	} else {
		fmt.Fprintf(w, "  current: %s (%s, %s)\n", env.Current.Version, env.Current.Status, env.Current.Timestamp)
	}
	for i := len(env.History) - 1; i >= 0; i-- {
		rec := env.History[i]
		marker := " "
		if rec.Rollback {
			marker = "R"
		}
		fmt.Fprintf(w, "  %s %s %s %s\n", marker, rec.Version, rec.Status, rec.Timestamp)
	}
}
