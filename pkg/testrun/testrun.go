// Package testrun executes test plans: generating skeleton test files,
// running the project's test command, and reporting coverage.
package testrun

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
)

// Handler executes test action plans against the current project.
type Handler struct {
	sb *sandbox.Sandbox
	pm *project.Manager
}

// NewHandler creates a test Handler.
func NewHandler(sb *sandbox.Sandbox, pm *project.Manager) *Handler {
	return &Handler{sb: sb, pm: pm}
}

// Execute runs every step of a test plan in order.
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
		case protocol.StepGenerateTests:
			res, err = h.generateTests(p, step)
		case protocol.StepRunTests:
			res, err = h.runTests(ctx, p, step)
		case protocol.StepAnalyzeCoverage:
			res, err = h.analyzeCoverage(ctx, p)
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

// generateTests writes a skeleton test file for a source file. The
// skeleton names one test per function found, so the file fails loudly
// rather than silently passing with no assertions about real behavior.
func (h *Handler) generateTests(p *project.Project, step protocol.Step) (string, error) {
	sourceFile := step.StringParam("source_file")
	if sourceFile == "" {
		sourceFile = step.StringParam("file_name")
	}
	if sourceFile == "" {
		return "", fmt.Errorf("no source file specified")
	}

	srcPath, err := h.sb.Resolve(p.Path, "src", sourceFile)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("source file not found: %s", sourceFile)
	}

	testPath, err := h.sb.Resolve(p.Path, "tests", "test_"+filepath.Base(sourceFile))
	if err != nil {
		return "", err
	}
	content := skeleton(sourceFile, string(data))
	if err := os.MkdirAll(filepath.Dir(testPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(testPath, []byte(content), 0o644); err != nil {
		return "", err
	}
	if err := h.pm.AddFile(testPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("generated %s", testPath), nil
}

// skeleton builds a test file stub from the declarations in source.
func skeleton(sourceFile, source string) string {
	stem := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))

	var names []string
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range []string{"def ", "class ", "func "} {
			if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
				name := rest
				for i, r := range rest {
					if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
						name = rest[:i]
						break
					}
				}
				if name != "" {
					names = append(names, name)
				}
			}
		}
	}

	var b strings.Builder
	b.WriteString("import pytest\n")
	fmt.Fprintf(&b, "from %s import *\n\n", stem)
	if len(names) == 0 {
		fmt.Fprintf(&b, "\ndef test_%s_imports():\n    assert True\n", stem)
		return b.String()
	}
	for _, name := range names {
		fmt.Fprintf(&b, "\ndef test_%s():\n    pytest.fail(\"not implemented\")\n", strings.ToLower(name))
	}
	return b.String()
}

// runTests runs the project's test command in the project root. A test
// failure is an error carrying the command output.
func (h *Handler) runTests(ctx context.Context, p *project.Project, step protocol.Step) (string, error) {
	testsDir := filepath.Join(p.Path, "tests")
	if _, err := os.Stat(testsDir); err != nil {
		return "", fmt.Errorf("no tests directory found")
	}

	prof := project.DetectProfile(p.Path)
	testCmd := prof.TestCmd
	if testCmd == "" {
		testCmd = "pytest tests"
	}
	args := strings.Fields(testCmd)
	if pattern := step.StringParam("pattern"); pattern != "" {
		args = append(args, "-k", pattern)
	}

	out, err := run(ctx, p.Path, args)
	if err != nil {
		return "", fmt.Errorf("tests failed: %w\n%s", err, out)
	}
	return out, nil
}

// analyzeCoverage runs a coverage report command for the detected
// language.
func (h *Handler) analyzeCoverage(ctx context.Context, p *project.Project) (string, error) {
	prof := project.DetectProfile(p.Path)
	var args []string
	switch prof.Language {
	case "go":
		args = []string{"go", "test", "-cover", "./..."}
	case "javascript":
		args = []string{"npx", "c8", "node", "--test"}
	default:
		args = []string{"coverage", "report"}
	}

	out, err := run(ctx, p.Path, args)
	if err != nil {
		return "", fmt.Errorf("coverage analysis failed: %w\n%s", err, out)
	}
	return out, nil
}

// run executes a command in dir with combined output.
func run(ctx context.Context, dir string, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir

	var buf strings.Builder
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
