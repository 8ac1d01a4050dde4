package main

import (
	"encoding/json"
	"fmt"
	"io"

	"codeme/pkg/eventlog"
	"codeme/pkg/protocol"

	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail      int
	eventType string
	project   string
	planID    string
	raw       bool
}

// newLogsCmd creates the "codeme logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the event log",
		Long:  "Displays recent events from the command lifecycle log.\nOptionally filter by event type, project, or plan id.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			reader, err := eventlog.NewReader(paths.EventDBPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer reader.Close()

			events, err := reader.Query(cmd.Context(), eventlog.QueryOpts{
				EventType: cfg.eventType,
				Project:   cfg.project,
				PlanID:    cfg.planID,
				Limit:     cfg.tail,
			})
			if err != nil {
				return fmt.Errorf("query event log: %w", err)
			}

			w := cmd.OutOrStdout()
			if cfg.raw {
				enc := json.NewEncoder(w)
				for _, ev := range events {
					if err := enc.Encode(ev); err != nil {
						return err
					}
				}
				return nil
			}

			if len(events) == 0 {
				fmt.Fprintln(w, "no events")
				return nil
			}

			// Query returns newest first; print oldest first.
			for i := len(events) - 1; i >= 0; i-- {
				printEvent(w, events[i])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 50, "maximum number of events to show")
	cmd.Flags().StringVar(&cfg.eventType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&cfg.project, "project", "", "filter by project")
	cmd.Flags().StringVar(&cfg.planID, "plan", "", "filter by plan id")
	cmd.Flags().BoolVar(&cfg.raw, "raw", false, "print events as JSON lines")

	return cmd
}

func printEvent(w io.Writer, ev protocol.Event) {
	line := fmt.Sprintf("%s  %-18s", ev.CreatedAt, ev.Type)
	if ev.Project != "" {
		line += "  [" + ev.Project + "]"
	}
	if ev.Payload != "" {
		line += "  " + ev.Payload
	}
	fmt.Fprintln(w, line)
}
