package assistant

import (
	"context"
	"errors"
	"fmt"

	"codeme/pkg/protocol"
)

// loop is the single consumer of the command queue. Commands are
// processed strictly in arrival order, one at a time; project state is
// only mutated from here.
func (a *Assistant) loop(ctx context.Context) {
	defer close(a.loopDone)
	for {
		cmd, err := a.queue.Pop(ctx)
		if err != nil {
			return
		}
		a.process(ctx, cmd)
		a.done.Add(1)
	}
}

// idle reports whether the loop has nothing queued and nothing in
// flight. A popped command counts as in flight until process returns.
func (a *Assistant) idle() bool {
	return a.queue.Len() == 0 && a.done.Load() == a.queue.Popped()
}

// process runs one command through intercept, synthesis, and dispatch.
// Recoverable failures are reported to the user and recorded; only
// queue cancellation stops the loop.
func (a *Assistant) process(ctx context.Context, cmd protocol.Command) {
	a.logEvent(ctx, protocol.EventCommandReceived, cmd.Source, "", cmd.RawText)

	// Project lifecycle commands bypass history and synthesis entirely.
	if pc, ok := protocol.ParseProjectCommand(cmd.RawText); ok {
		result, err := a.runProjectCommand(pc)
		if err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
			a.logEvent(ctx, protocol.EventProjectCommand, cmd.Source, "", fmt.Sprintf("%s failed: %v", pc.Verb, err))
			return
		}
		fmt.Fprintln(a.out, result)
		a.logEvent(ctx, protocol.EventProjectCommand, cmd.Source, "", string(pc.Verb)+" "+pc.Name)
		return
	}

	a.hist.Append(protocol.HistoryEntry{
		Timestamp: cmd.ReceivedAt,
		Source:    cmd.Source,
		RawText:   cmd.RawText,
	})

	if a.pm.Current() == nil {
		fmt.Fprintln(a.out, "no project loaded. create or load a project first.")
		return
	}

	a.logEvent(ctx, protocol.EventSynthesizing, cmd.Source, "", cmd.RawText)
	snap := a.sctx.Snapshot(a.pm, a.sb.ProjectsRoot())
	plan, err := a.pool.Synthesize(ctx, cmd.RawText, snap)
	if err != nil {
		var pe *protocol.PlanParseError
		if errors.As(err, &pe) {
			fmt.Fprintf(a.out, "could not understand the response: %s\n", pe.Reason)
		} else {
			fmt.Fprintf(a.out, "synthesis failed: %v\n", err)
		}
		a.logEvent(ctx, protocol.EventPlanFailed, cmd.Source, "", err.Error())
		return
	}
	a.logEvent(ctx, protocol.EventPlanParsed, cmd.Source, plan.ID, plan.Description)

	if err := a.validatePlan(plan); err != nil {
		fmt.Fprintf(a.out, "rejected plan: %v\n", err)
		a.logEvent(ctx, protocol.EventPlanFailed, cmd.Source, plan.ID, err.Error())
		return
	}
	a.logEvent(ctx, protocol.EventPlanValidated, cmd.Source, plan.ID, string(plan.Kind))

	fmt.Fprintf(a.out, "plan: %s\n", plan.Description)
	a.logEvent(ctx, protocol.EventPlanDispatched, cmd.Source, plan.ID, "")
	result, err := a.disp.Dispatch(ctx, plan)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		a.logEvent(ctx, protocol.EventPlanFailed, cmd.Source, plan.ID, err.Error())
		return
	}
	if result != "" {
		fmt.Fprintln(a.out, result)
	}
	a.logEvent(ctx, protocol.EventPlanCompleted, cmd.Source, plan.ID, "")

	a.sctx.SetLastAction(plan.Description)
	if plan.FilePath != "" {
		a.sctx.SetFile(plan.FilePath)
	}
}

// runProjectCommand executes an intercepted project lifecycle command.
func (a *Assistant) runProjectCommand(pc protocol.ProjectCommand) (string, error) {
	switch pc.Verb {
	case protocol.VerbCreate:
		p, err := a.pm.Create(pc.Name, pc.Description)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("created project %s at %s", p.Name, p.Path), nil
	case protocol.VerbLoad:
		p, err := a.pm.Load(pc.Name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("loaded project %s", p.Name), nil
	case protocol.VerbDelete:
		backupPath, err := a.pm.Delete(pc.Name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted project %s (backup at %s)", pc.Name, backupPath), nil
	case protocol.VerbBackup:
		backupPath, err := a.pm.Backup()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("backed up to %s", backupPath), nil
	case protocol.VerbList:
		projects := a.pm.List()
		if len(projects) == 0 {
			return "no projects found", nil
		}
		out := "projects:"
		for _, p := range projects {
			out += fmt.Sprintf("\n  %s - %s", p.Name, p.Description)
		}
		return out, nil
	default:
		return "", fmt.Errorf("unknown project command %q", pc.Verb)
	}
}
