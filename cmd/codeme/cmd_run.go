package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"codeme/pkg/assistant"
	"codeme/pkg/code"
	"codeme/pkg/deploy"
	"codeme/pkg/eventlog"
	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
	"codeme/pkg/synth"
	"codeme/pkg/testrun"

	"github.com/spf13/cobra"
)

// newRunCmd creates the "codeme run" subcommand.
func newRunCmd() *cobra.Command {
	var wakePhrase string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant command loop",
		Long:  "Starts the voice socket listener and the interactive text prompt,\nprocessing commands one at a time until quit or SIGINT.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := os.MkdirAll(paths.Home, 0o755); err != nil {
				return fmt.Errorf("create home dir: %w", err)
			}

			cfg, err := loadConfig(paths.ConfigPath)
			if err != nil {
				return err
			}
			if wakePhrase != "" {
				cfg.WakePhrase = wakePhrase
			}
			if cfg.APIKey == "" {
				return errNoAPIKey
			}

			out := cmd.OutOrStdout()
			log := newStartupLog(out, isStdoutTTY())

			sb, err := sandbox.New(paths.ProjectsRoot, paths.BackupsRoot)
			if err != nil {
				return fmt.Errorf("init sandbox: %w", err)
			}
			log.Step(fmt.Sprintf("sandbox at %s", paths.Home))

			pm, err := project.NewManager(sb, filepath.Join(paths.Home, "projects.json"))
			if err != nil {
				return fmt.Errorf("load project index: %w", err)
			}
			log.Step(fmt.Sprintf("%d projects", len(pm.List())))

			db, err := openEventDB(paths.EventDBPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer db.Close()
			log.Step("event log ready")

			client := synth.NewHTTPClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)
			pool := synth.NewPool(client, cfg.PoolSize)
			log.Step(fmt.Sprintf("synthesizer pool (%d slots)", pool.Size()))

			disp := assistant.NewDispatcher()
			a := assistant.New(assistant.Config{
				SocketPath:        paths.SocketPath,
				WakePhrase:        cfg.WakePhrase,
				HistoryPath:       paths.HistoryPath,
				WatchPollInterval: cfg.watchPoll(),
				ShutdownGrace:     cfg.shutdownGrace(),
			}, sb, pm, pool, disp, eventlog.NewWriter(db), out)

			disp.Register(protocol.ActionCode, code.NewHandler(sb, pm))
			disp.Register(protocol.ActionTest, testrun.NewHandler(sb, pm))
			disp.Register(protocol.ActionDeploy, deploy.NewHandler(paths.DeploysRoot, pm))

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Step(fmt.Sprintf("listening on %s (wake phrase %q)", paths.SocketPath, cfg.WakePhrase))
			fmt.Fprintln(out, "type a command, or 'help'")

			// Stdin drives shutdown: quit/exit cancels the run context.
			// EOF leaves the voice intake running.
			go func() {
				reader := assistant.NewTextReader(cmd.InOrStdin(), out, a.Queue(), a.Meta)
				if reader.Run() {
					cancel()
				}
			}()

			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&wakePhrase, "wake", "", "override the wake phrase for this run")

	return cmd
}
