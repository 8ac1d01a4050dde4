// Package code executes file-manipulation plans: creating, modifying,
// and analyzing source files inside the current project.
package code

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
)

// Handler executes code action plans against the current project.
type Handler struct {
	sb *sandbox.Sandbox
	pm *project.Manager

	nowFunc func() time.Time
}

// NewHandler creates a code Handler.
func NewHandler(sb *sandbox.Sandbox, pm *project.Manager) *Handler {
	return &Handler{sb: sb, pm: pm, nowFunc: time.Now}
}

// Execute runs every step of a code plan in order. The first failing
// step aborts the plan; its error is wrapped with the step kind. Steps
// of a kind this handler does not recognize are skipped.
func (h *Handler) Execute(ctx context.Context, plan *protocol.ActionPlan) (string, error) {
	p := h.pm.Current()
	if p == nil {
		return "", &protocol.NoProjectError{}
	}

	var results []string
	for _, step := range plan.Steps {
		var (
			res string
			err error
		)
		switch step.Kind {
		case protocol.StepCreateFile:
			name := step.StringParam("file_name")
			content := step.StringParam("content")
			if content == "" {
				content = plan.Code
			}
			res, err = h.createFile(ctx, p, name, content)
		case protocol.StepModifyFile:
			path := step.StringParam("file_name")
			if path == "" {
				path = plan.FilePath
			}
			res, err = h.modifyFile(ctx, p, path, step)
		case protocol.StepAnalyzeCode:
			path := step.StringParam("file_name")
			if path == "" {
				path = plan.FilePath
			}
			res, err = h.analyzeCode(p, path)
		default:
			// Unrecognized step kinds are skipped, not fatal.
			continue
		}
		if err != nil {
			return "", &protocol.StepError{Kind: step.Kind, Err: err}
		}
		results = append(results, res)
	}
	return strings.Join(results, "\n"), nil
}

// createFile writes a new file under the template subdirectory matching
// its name. Empty content gets a generated header so the file is never
// zero bytes.
func (h *Handler) createFile(ctx context.Context, p *project.Project, fileName, content string) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("no file name specified")
	}
	full, err := h.sb.Resolve(p.Path, project.SubdirFor(fileName), fileName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}

	if content == "" {
		content = fmt.Sprintf("# Created by codeme\n# Project: %s\n# Created: %s\n\n",
			p.Name, h.nowFunc().Format("2006-01-02 15:04:05"))
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", err
	}
	h.format(ctx, p, full)

	if err := h.pm.AddFile(full); err != nil {
		return "", err
	}
	return fmt.Sprintf("created %s", full), nil
}

// modifyFile applies an append, prepend, or replace edit to an existing
// file. The path may be absolute or relative to the project root.
func (h *Handler) modifyFile(ctx context.Context, p *project.Project, path string, step protocol.Step) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no file path specified")
	}
	var full string
	var err error
	if filepath.IsAbs(path) {
		full, err = h.sb.Resolve(path)
	} else {
		full, err = h.sb.Resolve(p.Path, path)
	}
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	content := string(data)

	switch {
	case step.StringParam("append") != "":
		content += "\n" + step.StringParam("append")
	case step.StringParam("prepend") != "":
		content = step.StringParam("prepend") + "\n" + content
	case step.StringParam("replace") != "":
		content = step.StringParam("replace")
	case step.StringParam("content") != "":
		content = step.StringParam("content")
	default:
		return "", fmt.Errorf("no modification specified")
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", err
	}
	h.format(ctx, p, full)
	return fmt.Sprintf("modified %s", full), nil
}

// analyzeCode reports a line count, rough declaration counts, and the
// file contents.
func (h *Handler) analyzeCode(p *project.Project, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no file path specified")
	}
	full, err := h.sb.Resolve(p.Path, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	content := string(data)
	a := analyze(content)

	var b strings.Builder
	fmt.Fprintf(&b, "analysis of %s:\n", path)
	fmt.Fprintf(&b, "  lines: %d\n  types: %d\n  functions: %d\n  imports: %d\n", a.lines, a.types, a.functions, a.imports)
	fmt.Fprintf(&b, "contents:\n%s", content)
	return b.String(), nil
}

type analysis struct {
	lines     int
	types     int
	functions int
	imports   int
}

// analyze counts declarations by line prefix. It is a heuristic, not a
// parse; good enough to summarize a file the assistant just wrote.
func analyze(content string) analysis {
	var a analysis
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "class ") || strings.HasPrefix(trimmed, "type "):
			a.types++
		case strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "func ") ||
			strings.HasPrefix(trimmed, "function "):
			a.functions++
		case strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") ||
			trimmed == "import (" || strings.HasPrefix(trimmed, "require("):
			a.imports++
		}
	}
	a.lines = len(strings.Split(strings.TrimRight(content, "\n"), "\n"))
	return a
}

// format runs the project's formatter over the file, best effort. A
// missing or failing formatter never fails the step.
func (h *Handler) format(ctx context.Context, p *project.Project, full string) {
	prof := project.DetectProfile(p.Path)
	if prof.FormatCmd == "" {
		return
	}
	parts := strings.Fields(prof.FormatCmd)
	args := append(parts[1:], full)
	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Dir = p.Path
	_ = cmd.Run()
}
