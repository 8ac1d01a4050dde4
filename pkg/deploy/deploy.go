// Package deploy executes deployment plans: building artifacts, rolling
// them out per environment, rolling back, and reporting status. State
// lives under a deployments directory as plain JSON.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"codeme/pkg/project"
	"codeme/pkg/protocol"
	"codeme/pkg/sandbox"
)

// Record describes one deployment of an environment.
type Record struct {
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	Path      string `json:"path"`
	Rollback  bool   `json:"rollback,omitempty"`
}

// EnvStatus is the per-environment slot in the status file: the active
// deployment plus a bounded history.
type EnvStatus struct {
	Current *Record  `json:"current"`
	History []Record `json:"history"`
}

// EnvConfig is the user-authored per-environment deployment config.
type EnvConfig struct {
	Location           string   `json:"location,omitempty"`
	PreDeployCommands  []string `json:"pre_deploy_commands,omitempty"`
	PostDeployCommands []string `json:"post_deploy_commands,omitempty"`
}

// Handler executes deploy action plans. root is the deployments state
// directory; build artifacts, per-environment trees, the config, and
// the status file all live under it.
type Handler struct {
	root string
	pm   *project.Manager

	nowFunc func() time.Time
}

// NewHandler creates a deploy Handler rooted at dir.
func NewHandler(dir string, pm *project.Manager) *Handler {
	return &Handler{root: dir, pm: pm, nowFunc: time.Now}
}

func (h *Handler) configPath() string { return filepath.Join(h.root, "deployment_config.json") }
func (h *Handler) statusPath() string { return filepath.Join(h.root, "status.json") }

// Execute runs every step of a deploy plan in order.
func (h *Handler) Execute(ctx context.Context, plan *protocol.ActionPlan) (string, error) {
	var results []string
	for _, step := range plan.Steps {
		var (
			res string
			err error
		)
		switch step.Kind {
		case protocol.StepBuild:
			res, err = h.build(ctx, step)
		case protocol.StepDeploy:
			res, err = h.deploy(ctx, step)
		case protocol.StepRollback:
			res, err = h.rollback(ctx, step)
		case protocol.StepStatus:
			res, err = h.statusReport()
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

// build copies the current project's sources into the build directory
// and runs any build commands from the step params.
func (h *Handler) build(ctx context.Context, step protocol.Step) (string, error) {
	p := h.pm.Current()
	if p == nil {
		return "", &protocol.NoProjectError{}
	}

	buildDir := filepath.Join(h.root, "build")
	if err := os.RemoveAll(buildDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return "", err
	}

	copied := 0
	for _, sub := range []string{"src", "tests", "project.json", "README.md"} {
		source := filepath.Join(p.Path, sub)
		if _, err := os.Stat(source); err != nil {
			continue
		}
		if err := copyTree(source, filepath.Join(buildDir, sub)); err != nil {
			return "", fmt.Errorf("copy %s: %w", sub, err)
		}
		copied++
	}
	if copied == 0 {
		return "", fmt.Errorf("nothing to build in %s", p.Name)
	}

	for _, cmdline := range stringSlice(step.Params, "commands") {
		if out, err := runCmd(ctx, buildDir, cmdline); err != nil {
			return "", fmt.Errorf("build command %q: %w\n%s", cmdline, err, out)
		}
	}
	return fmt.Sprintf("built %s into %s", p.Name, buildDir), nil
}

// deploy copies the build into a timestamped directory for the target
// environment, runs the environment's hooks, and records the result.
func (h *Handler) deploy(ctx context.Context, step protocol.Step) (string, error) {
	environment := step.StringParam("environment")
	if environment == "" {
		environment = "development"
	}
	envCfg, err := h.loadConfig(environment)
	if err != nil {
		return "", err
	}

	timestamp := h.nowFunc().Format("20060102_150405")
	deployDir := filepath.Join(h.root, sandbox.SanitizeName(environment), timestamp)
	if err := os.MkdirAll(deployDir, 0o755); err != nil {
		return "", err
	}

	buildDir := filepath.Join(h.root, "build")
	if _, err := os.Stat(buildDir); err == nil {
		if err := copyTree(buildDir, deployDir); err != nil {
			return "", fmt.Errorf("copy build artifacts: %w", err)
		}
	}

	if err := h.runHooks(ctx, deployDir, envCfg); err != nil {
		return "", err
	}

	version := step.StringParam("version")
	if version == "" {
		version = "latest"
	}
	rec := Record{
		Timestamp: timestamp,
		Version:   version,
		Status:    "active",
		Path:      deployDir,
	}
	if err := h.recordDeployment(environment, rec); err != nil {
		return "", err
	}
	return fmt.Sprintf("deployed %s to %s", version, environment), nil
}

// rollback re-activates a previous deployment of an environment. With
// an explicit version it finds that entry in the history; without one
// it picks the entry before the current deployment.
func (h *Handler) rollback(ctx context.Context, step protocol.Step) (string, error) {
	environment := step.StringParam("environment")
	if environment == "" {
		return "", fmt.Errorf("no environment specified")
	}
	status, err := h.loadStatus()
	if err != nil {
		return "", err
	}
	env, ok := status[environment]
	if !ok || len(env.History) == 0 {
		return "", fmt.Errorf("no deployments found for environment %q", environment)
	}

	version := step.StringParam("version")
	var target *Record
	if version != "" {
		for i := range env.History {
			if env.History[i].Version == version {
				target = &env.History[i]
				break
			}
		}
		if target == nil {
			return "", fmt.Errorf("deployment version %q not found", version)
		}
	} else {
		if len(env.History) < 2 {
			return "", fmt.Errorf("no previous deployment found")
		}
		target = &env.History[len(env.History)-2]
	}

	envCfg, err := h.loadConfig(environment)
	if err != nil {
		return "", err
	}
	if err := h.runHooks(ctx, target.Path, envCfg); err != nil {
		return "", err
	}

	rec := Record{
		Timestamp: h.nowFunc().Format("20060102_150405"),
		Version:   target.Version,
		Status:    "active",
		Path:      target.Path,
		Rollback:  true,
	}
	if err := h.recordDeployment(environment, rec); err != nil {
		return "", err
	}
	return fmt.Sprintf("rolled %s back to %s", environment, target.Version), nil
}

// statusReport renders the status file for display.
func (h *Handler) statusReport() (string, error) {
	status, err := h.loadStatus()
	if err != nil {
		return "", err
	}
	if len(status) == 0 {
		return "no deployments recorded", nil
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Status returns the parsed status file. Missing file means no
// deployments yet.
func (h *Handler) Status() (map[string]*EnvStatus, error) {
	return h.loadStatus()
}

func (h *Handler) loadStatus() (map[string]*EnvStatus, error) {
	data, err := os.ReadFile(h.statusPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*EnvStatus{}, nil
		}
		return nil, err
	}
	var status map[string]*EnvStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parse deployment status: %w", err)
	}
	return status, nil
}

// loadConfig reads the environment's entry from the deployment config.
// A missing config file is an empty config for every environment.
func (h *Handler) loadConfig(environment string) (EnvConfig, error) {
	data, err := os.ReadFile(h.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return EnvConfig{}, nil
		}
		return EnvConfig{}, err
	}
	var cfg map[string]EnvConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse deployment config: %w", err)
	}
	envCfg, ok := cfg[environment]
	if !ok {
		return EnvConfig{}, fmt.Errorf("environment %q not found in deployment config", environment)
	}
	return envCfg, nil
}

// recordDeployment sets the environment's current record and appends it
// to the history, keeping only the newest DeployHistoryCap entries.
func (h *Handler) recordDeployment(environment string, rec Record) error {
	status, err := h.loadStatus()
	if err != nil {
		return err
	}
	env, ok := status[environment]
	if !ok {
		env = &EnvStatus{}
		status[environment] = env
	}
	env.Current = &rec
	env.History = append(env.History, rec)
	if len(env.History) > protocol.DeployHistoryCap {
		env.History = env.History[len(env.History)-protocol.DeployHistoryCap:]
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(h.root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(h.statusPath(), data, 0o644)
}

// runHooks runs the environment's pre and post deploy commands, with
// the deployment directory as working directory. The target location
// copy happens between them.
func (h *Handler) runHooks(ctx context.Context, deployDir string, cfg EnvConfig) error {
	for _, cmdline := range cfg.PreDeployCommands {
		if out, err := runCmd(ctx, deployDir, cmdline); err != nil {
			return fmt.Errorf("pre-deploy command %q: %w\n%s", cmdline, err, out)
		}
	}
	if cfg.Location != "" {
		if err := os.MkdirAll(cfg.Location, 0o755); err != nil {
			return err
		}
		if err := copyTree(deployDir, cfg.Location); err != nil {
			return fmt.Errorf("copy to %s: %w", cfg.Location, err)
		}
	}
	for _, cmdline := range cfg.PostDeployCommands {
		if out, err := runCmd(ctx, deployDir, cmdline); err != nil {
			return fmt.Errorf("post-deploy command %q: %w\n%s", cmdline, err, out)
		}
	}
	return nil
}

// runCmd executes a space-separated command line in dir.
func runCmd(ctx context.Context, dir, cmdline string) (string, error) {
	parts := strings.Fields(cmdline)
	if len(parts) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = dir

	var buf strings.Builder
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

// stringSlice pulls a []string out of loosely-typed step params.
func stringSlice(params map[string]any, key string) []string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// copyTree recursively copies src (file or directory) to dst.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
