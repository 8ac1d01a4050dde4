// Package assistant wires the intake sources, the command queue, the
// plan synthesizer, and the action handlers into the serialized
// processing loop that is the core of codeme.
package assistant

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"codeme/pkg/eventlog"
	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
	"codeme/pkg/synth"
)

// Config carries the knobs the assistant needs at construction time.
type Config struct {
	// SocketPath is the unix socket the speech recognizer connects to.
	SocketPath string

	// WakePhrase gates voice utterances. Empty disables voice intake
	// matching entirely.
	WakePhrase string

	// HistoryPath is the command history JSON file.
	HistoryPath string

	// WatchPollInterval is the projects-root watcher fallback poll
	// interval.
	WatchPollInterval time.Duration

	// ShutdownGrace bounds how long Close waits for the in-flight
	// command before force-cancelling it.
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.WakePhrase == "" {
		c.WakePhrase = "hey assistant"
	}
	if c.WatchPollInterval <= 0 {
		c.WatchPollInterval = 2 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	return c
}

// Assistant owns the command queue and the processing loop. One
// Assistant runs per process; all project mutation happens on the loop
// goroutine.
type Assistant struct {
	cfg Config

	sb     *sandbox.Sandbox
	pm     *project.Manager
	pool   *synth.Pool
	disp   *Dispatcher
	queue  *Queue
	sctx   *Context
	hist   *History
	events *eventlog.Writer

	listener *VoiceListener
	out      io.Writer

	// loopDone closes when the processing loop has fully stopped.
	loopDone chan struct{}

	// done counts commands fully processed; compared against the
	// queue's popped count to detect an in-flight command.
	done atomic.Uint64

	nowFunc func() time.Time
}

// New assembles an Assistant. It does not start anything — call Run.
func New(cfg Config, sb *sandbox.Sandbox, pm *project.Manager, pool *synth.Pool, disp *Dispatcher, events *eventlog.Writer, out io.Writer) *Assistant {
	cfg = cfg.withDefaults()
	if out == nil {
		out = os.Stdout
	}
	a := &Assistant{
		cfg:      cfg,
		sb:       sb,
		pm:       pm,
		pool:     pool,
		disp:     disp,
		queue:    NewQueue(),
		hist:     OpenHistory(cfg.HistoryPath),
		events:   events,
		out:      out,
		loopDone: make(chan struct{}),
		nowFunc:  time.Now,
	}
	a.sctx = NewContext(a.nowFunc())
	a.listener = NewVoiceListener(cfg.SocketPath, cfg.WakePhrase, a.queue)
	disp.Register(protocol.ActionNavigate, &navigateHandler{})
	return a
}

// Queue exposes the command queue for intake sources.
func (a *Assistant) Queue() *Queue { return a.queue }

// Meta answers the built-in meta commands. The second return is false
// when the line is a real command that should be queued.
func (a *Assistant) Meta(line string) (string, bool) {
	switch line {
	case "help":
		return helpText, true
	case "history":
		var b []byte
		for _, e := range a.hist.Recent(10) {
			b = append(b, fmt.Sprintf("  %s [%s] %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Source, e.RawText)...)
		}
		if len(b) == 0 {
			return "no commands yet", true
		}
		return "recent commands:\n" + string(b), true
	case "context":
		return a.sctx.Describe(a.pm, a.sb.ProjectsRoot()), true
	case "projects":
		projects := a.pm.List()
		if len(projects) == 0 {
			return "no projects found", true
		}
		out := "projects:\n"
		for _, p := range projects {
			out += fmt.Sprintf("  %s - %s (created %s)\n",
				p.Name, p.Description, p.CreatedAt.Format("2006-01-02"))
		}
		return out, true
	}
	return "", false
}

const helpText = `commands:
  create project <name>   start a new project
  load project <name>     switch to an existing project
  delete project <name>   back up and remove a project
  backup project          snapshot the current project
  list projects           show all projects
  history                 show recent commands
  context                 show session state
  help                    show this message
  quit                    save and exit
anything else is synthesized into a coding action.`

// Run starts the voice listener and the processing loop, then blocks
// until ctx is cancelled. Shutdown drains the in-flight command for up
// to ShutdownGrace; queued commands that never started are dropped.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.listener.Start(); err != nil {
		return err
	}
	defer a.listener.Close()

	go a.pm.WatchRoot(ctx, a.cfg.WatchPollInterval)

	// loopCtx outlives ctx so the in-flight command can finish.
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	go a.loop(loopCtx)

	<-ctx.Done()

	// Stop intake first: no new commands once shutdown begins.
	a.listener.Close()

	deadline := time.NewTimer(a.cfg.ShutdownGrace)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	a.drainWait(loopCtx, cancelLoop, deadline.C, ticker.C)

	if err := a.hist.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	a.logEvent(context.Background(), protocol.EventShutdown, "", "", "")
	return nil
}

// drainWait waits for the loop to go idle, then cancels it. If the
// grace deadline fires first the in-flight command is cancelled.
func (a *Assistant) drainWait(loopCtx context.Context, cancelLoop context.CancelFunc, deadline <-chan time.Time, tick <-chan time.Time) {
	for {
		select {
		case <-deadline:
			cancelLoop()
			<-a.loopDone
			return
		case <-tick:
			if a.idle() {
				cancelLoop()
				<-a.loopDone
				return
			}
		case <-a.loopDone:
			return
		}
	}
}
