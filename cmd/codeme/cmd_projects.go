package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"codeme/pkg/project"
	"codeme/pkg/sandbox"

	"github.com/spf13/cobra"
)

// newProjectsCmd creates the "codeme projects" subcommand.
func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List known projects",
		Long:  "Lists every project in the index with its file count and last access time.\nProjects whose directories no longer exist are omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			sb, err := sandbox.New(paths.ProjectsRoot, paths.BackupsRoot)
			if err != nil {
				return fmt.Errorf("init sandbox: %w", err)
			}
			pm, err := project.NewManager(sb, filepath.Join(paths.Home, "projects.json"))
			if err != nil {
				return fmt.Errorf("load project index: %w", err)
			}

			projects := pm.List()
			w := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(w, "no projects")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFILES\tLAST ACCESSED\tPATH")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
					p.Name, len(p.Files), p.LastAccessedAt.Format("2006-01-02 15:04"), p.Path)
			}
			return tw.Flush()
		},
	}
}
