package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
	"codeme/pkg/synth"
)

// echoClient synthesizes a code plan whose description is the command
// text, so tests can observe processing order.
type echoClient struct{}

func (echoClient) Complete(_ context.Context, prompt string) (string, error) {
	for _, line := range strings.Split(prompt, "\n") {
		if after, ok := strings.CutPrefix(line, "Command: "); ok {
			desc, _ := json.Marshal(after)
			return fmt.Sprintf(`{"action_type": "code", "description": %s}`, desc), nil
		}
	}
	return "", errors.New("no command line in prompt")
}

// badClient returns non-JSON chatter.
type badClient struct{}

func (badClient) Complete(context.Context, string) (string, error) {
	return "Sure! Here is what I would do:", nil
}

// recordingHandler records the plans it executes.
type recordingHandler struct {
	mu    sync.Mutex
	descs []string
	fail  error
	panic bool
}

func (r *recordingHandler) Execute(_ context.Context, plan *protocol.ActionPlan) (string, error) {
	if r.panic {
		panic("handler exploded")
	}
	if r.fail != nil {
		return "", r.fail
	}
	r.mu.Lock()
	r.descs = append(r.descs, plan.Description)
	r.mu.Unlock()
	return "done: " + plan.Description, nil
}

func (r *recordingHandler) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.descs...)
}

func newTestAssistant(t *testing.T, client synth.Client, h Handler) (*Assistant, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	sb, err := sandbox.New(filepath.Join(root, "projects"), filepath.Join(root, "backups"))
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	pm, err := project.NewManager(sb, filepath.Join(root, "projects.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	disp := NewDispatcher()
	if h != nil {
		disp.Register(protocol.ActionCode, h)
		disp.Register(protocol.ActionTest, h)
		disp.Register(protocol.ActionDeploy, h)
	}

	var out bytes.Buffer
	a := New(Config{
		SocketPath:  filepath.Join(root, "voice.sock"),
		HistoryPath: filepath.Join(root, "history.json"),
	}, sb, pm, synth.NewPool(client, 2), disp, nil, &out)
	return a, &out
}

func textCmd(text string) protocol.Command {
	return protocol.Command{Source: protocol.SourceText, RawText: text, ReceivedAt: time.Now()}
}

func TestProcessRequiresProject(t *testing.T) {
	a, out := newTestAssistant(t, echoClient{}, &recordingHandler{})
	a.process(context.Background(), textCmd("write a hello script"))
	if !strings.Contains(out.String(), "no project loaded") {
		t.Errorf("output = %q", out.String())
	}

	// The command is recorded even though no project was loaded.
	recent := a.hist.Recent(1)
	if len(recent) != 1 || recent[0].RawText != "write a hello script" {
		t.Errorf("history = %+v, want the rejected command recorded", recent)
	}
}

func TestProcessProjectCommandsBypassSynthesis(t *testing.T) {
	rec := &recordingHandler{}
	a, out := newTestAssistant(t, badClient{}, rec)

	a.process(context.Background(), textCmd("create project demo"))
	if !strings.Contains(out.String(), "created project demo") {
		t.Fatalf("output = %q", out.String())
	}
	if a.pm.Current() == nil {
		t.Fatal("no current project after create")
	}

	out.Reset()
	a.process(context.Background(), textCmd("list projects"))
	if !strings.Contains(out.String(), "demo") {
		t.Errorf("list output = %q", out.String())
	}

	out.Reset()
	a.process(context.Background(), textCmd("backup project"))
	if !strings.Contains(out.String(), "backed up to") {
		t.Errorf("backup output = %q", out.String())
	}

	out.Reset()
	a.process(context.Background(), textCmd("delete project demo"))
	if !strings.Contains(out.String(), "deleted project demo") {
		t.Errorf("delete output = %q", out.String())
	}
	if len(rec.executed()) != 0 {
		t.Errorf("handler ran for project commands: %v", rec.executed())
	}
}

func TestProcessSynthesizesAndDispatches(t *testing.T) {
	rec := &recordingHandler{}
	a, out := newTestAssistant(t, echoClient{}, rec)
	a.process(context.Background(), textCmd("create project demo"))
	out.Reset()

	a.process(context.Background(), textCmd("write a fizzbuzz script"))
	if got := rec.executed(); len(got) != 1 || got[0] != "write a fizzbuzz script" {
		t.Fatalf("executed = %v", got)
	}
	if !strings.Contains(out.String(), "plan: write a fizzbuzz script") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "done:") {
		t.Errorf("handler result not shown: %q", out.String())
	}
}

func TestProcessUpdatesContextAfterDispatch(t *testing.T) {
	a, _ := newTestAssistant(t, echoClient{}, &recordingHandler{})
	a.process(context.Background(), textCmd("create project demo"))
	a.process(context.Background(), textCmd("add a parser"))

	snap := a.sctx.Snapshot(a.pm, a.sb.ProjectsRoot())
	if snap.LastAction != "add a parser" {
		t.Errorf("LastAction = %q", snap.LastAction)
	}
	if snap.ProjectName != "demo" {
		t.Errorf("ProjectName = %q", snap.ProjectName)
	}
}

func TestProcessReportsParseFailure(t *testing.T) {
	rec := &recordingHandler{}
	a, out := newTestAssistant(t, badClient{}, rec)
	a.process(context.Background(), textCmd("create project demo"))
	out.Reset()

	a.process(context.Background(), textCmd("write something"))
	if !strings.Contains(out.String(), "could not understand") {
		t.Errorf("output = %q", out.String())
	}
	if len(rec.executed()) != 0 {
		t.Errorf("handler ran on parse failure")
	}
}

func TestProcessSurvivesHandlerPanic(t *testing.T) {
	rec := &recordingHandler{panic: true}
	a, out := newTestAssistant(t, echoClient{}, rec)
	a.process(context.Background(), textCmd("create project demo"))
	out.Reset()

	a.process(context.Background(), textCmd("explode please"))
	if !strings.Contains(out.String(), "panicked") {
		t.Errorf("output = %q", out.String())
	}

	// The loop keeps working afterwards.
	rec.panic = false
	out.Reset()
	a.process(context.Background(), textCmd("now behave"))
	if got := rec.executed(); len(got) != 1 {
		t.Fatalf("executed after panic = %v", got)
	}
}

func TestProcessHandlerFailure(t *testing.T) {
	rec := &recordingHandler{fail: &protocol.StepError{
		Kind: protocol.StepCreateFile,
		Err:  errors.New("disk full"),
	}}
	a, out := newTestAssistant(t, echoClient{}, rec)
	a.process(context.Background(), textCmd("create project demo"))
	out.Reset()

	a.process(context.Background(), textCmd("write a thing"))
	if !strings.Contains(out.String(), "disk full") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLoopProcessesInArrivalOrder(t *testing.T) {
	rec := &recordingHandler{}
	a, _ := newTestAssistant(t, echoClient{}, rec)
	a.process(context.Background(), textCmd("create project demo"))

	ctx, cancel := context.WithCancel(context.Background())
	go a.loop(ctx)

	var want []string
	for i := 0; i < 8; i++ {
		text := fmt.Sprintf("task number %d", i)
		src := protocol.SourceText
		if i%2 == 0 {
			src = protocol.SourceVoice
		}
		a.queue.Push(protocol.Command{Source: src, RawText: text, ReceivedAt: time.Now()})
		want = append(want, text)
	}

	deadline := time.After(5 * time.Second)
	for len(rec.executed()) < len(want) {
		select {
		case <-deadline:
			t.Fatalf("loop never drained; executed %v", rec.executed())
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !a.idle() {
		t.Error("assistant not idle after draining")
	}
	cancel()
	<-a.loopDone

	got := rec.executed()
	if len(got) != len(want) {
		t.Fatalf("executed %d plans, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestMetaCommands(t *testing.T) {
	a, _ := newTestAssistant(t, echoClient{}, &recordingHandler{})
	a.process(context.Background(), textCmd("create project demo"))

	if reply, ok := a.Meta("help"); !ok || !strings.Contains(reply, "create project") {
		t.Errorf("help = %q, %v", reply, ok)
	}
	if reply, ok := a.Meta("projects"); !ok || !strings.Contains(reply, "demo") {
		t.Errorf("projects = %q, %v", reply, ok)
	}
	if reply, ok := a.Meta("context"); !ok || !strings.Contains(reply, "current project: demo") {
		t.Errorf("context = %q, %v", reply, ok)
	}
	a.process(context.Background(), textCmd("write a parser"))
	if reply, ok := a.Meta("history"); !ok || !strings.Contains(reply, "write a parser") {
		t.Errorf("history = %q, %v", reply, ok)
	}
	if _, ok := a.Meta("write a parser"); ok {
		t.Error("real command claimed as meta")
	}
}

func TestNavigateAsksForClarification(t *testing.T) {
	a, _ := newTestAssistant(t, echoClient{}, &recordingHandler{})
	a.process(context.Background(), textCmd("create project demo"))

	plan := &protocol.ActionPlan{
		ID:          "nav-1",
		Kind:        protocol.ActionNavigate,
		Description: "open main",
		FilePath:    filepath.Join("src", "main.py"),
	}
	result, err := a.disp.Dispatch(context.Background(), plan)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// Navigation never touches files; it only asks the user to rephrase.
	if !strings.Contains(result, "clarify") {
		t.Errorf("result = %q, want a clarification prompt", result)
	}
}

// escapeClient produces a plan whose only step reaches outside the
// sandbox.
type escapeClient struct{}

func (escapeClient) Complete(context.Context, string) (string, error) {
	return `{"action_type": "code", "description": "overwrite system file",
		"steps": [{"type": "create_file", "params": {"file_name": "../../../../etc/passwd", "content": "owned"}}]}`, nil
}

func TestEscapingPlanRejectedBeforeDispatch(t *testing.T) {
	rec := &recordingHandler{}
	a, out := newTestAssistant(t, escapeClient{}, rec)
	a.process(context.Background(), textCmd("create project demo"))
	out.Reset()

	a.process(context.Background(), textCmd("do something sneaky"))
	if !strings.Contains(out.String(), "rejected plan") {
		t.Fatalf("output = %q", out.String())
	}
	if len(rec.executed()) != 0 {
		t.Fatal("handler ran for an escaping plan")
	}
}

func TestValidatePlanChecksEveryPathParam(t *testing.T) {
	a, _ := newTestAssistant(t, echoClient{}, &recordingHandler{})
	a.process(context.Background(), textCmd("create project demo"))

	for _, key := range []string{"file_name", "file_path", "path", "source_file"} {
		plan := &protocol.ActionPlan{
			ID:          "v-" + key,
			Kind:        protocol.ActionCode,
			Description: "escape attempt",
			Steps: []protocol.Step{
				{Kind: protocol.StepModifyFile, Params: map[string]any{key: "../../../../etc/passwd"}},
			},
		}
		if err := a.validatePlan(plan); err == nil {
			t.Errorf("escaping %q param accepted", key)
		}
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	d := NewDispatcher()
	_, err := d.Dispatch(context.Background(), &protocol.ActionPlan{Kind: "dance"})
	var ua *protocol.UnknownActionError
	if !errors.As(err, &ua) {
		t.Fatalf("err = %v, want UnknownActionError", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	rec := &recordingHandler{}
	a, _ := newTestAssistant(t, echoClient{}, rec)
	a.cfg.ShutdownGrace = 2 * time.Second
	a.process(context.Background(), textCmd("create project demo"))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	// Wait for the socket to come up, then drive a voice command in.
	var conn net.Conn
	var err error
	for i := 0; i < 100; i++ {
		conn, err = net.Dial("unix", a.cfg.SocketPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial voice socket: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	if ack := sendUtterance(t, conn, r, "hey assistant write a greeter"); !ack.Queued {
		t.Fatalf("ack = %+v", ack)
	}

	deadline := time.After(5 * time.Second)
	for len(rec.executed()) == 0 {
		select {
		case <-deadline:
			t.Fatal("voice command never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not shut down")
	}

	// Shutdown saved the history and removed the socket.
	entries := readHistoryFile(t, a.cfg.HistoryPath)
	if len(entries) != 1 || entries[0].RawText != "write a greeter" {
		t.Errorf("history = %+v", entries)
	}
	if _, err := os.Stat(a.cfg.SocketPath); !os.IsNotExist(err) {
		t.Error("socket file left behind")
	}
}

func TestTextReaderMetaAndQueue(t *testing.T) {
	a, _ := newTestAssistant(t, echoClient{}, &recordingHandler{})
	var out bytes.Buffer
	in := strings.NewReader("help\n\nwrite a parser\nquit\nnever seen\n")
	r := NewTextReader(in, &out, a.queue, a.Meta)

	if quit := r.Run(); !quit {
		t.Error("Run did not report quit")
	}
	if !strings.Contains(out.String(), "commands:") {
		t.Errorf("help not printed: %q", out.String())
	}
	if a.queue.Len() != 1 {
		t.Fatalf("queue = %d, want 1", a.queue.Len())
	}
	cmd, _ := a.queue.Pop(context.Background())
	if cmd.RawText != "write a parser" || cmd.Source != protocol.SourceText {
		t.Errorf("queued = %+v", cmd)
	}
}
