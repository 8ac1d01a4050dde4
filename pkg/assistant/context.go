package assistant

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"codeme/pkg/project"
	"codeme/pkg/synth"
)

// Context tracks the mutable session state referenced by follow-up
// commands: the file being worked on, what just happened, and what the
// user is in the middle of.
type Context struct {
	mu           sync.Mutex
	currentFile  string
	lastAction   string
	currentTask  string
	sessionStart time.Time
}

// NewContext creates a Context with the session start stamped.
func NewContext(now time.Time) *Context {
	return &Context{sessionStart: now}
}

// SetFile records the file the last plan touched.
func (c *Context) SetFile(path string) {
	c.mu.Lock()
	c.currentFile = path
	c.mu.Unlock()
}

// CurrentFile returns the file the session is focused on.
func (c *Context) CurrentFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentFile
}

// SetLastAction records the description of the last completed plan.
func (c *Context) SetLastAction(desc string) {
	c.mu.Lock()
	c.lastAction = desc
	c.mu.Unlock()
}

// SetTask records the task the user stated they are working on.
func (c *Context) SetTask(task string) {
	c.mu.Lock()
	c.currentTask = task
	c.mu.Unlock()
}

// Snapshot assembles the synthesis context from the session state and
// the current project.
func (c *Context) Snapshot(pm *project.Manager, projectsRoot string) synth.Snapshot {
	c.mu.Lock()
	snap := synth.Snapshot{
		ProjectRoot: projectsRoot,
		CurrentFile: c.currentFile,
		LastAction:  c.lastAction,
		CurrentTask: c.currentTask,
	}
	c.mu.Unlock()

	if p := pm.Current(); p != nil {
		snap.ProjectName = p.Name
		snap.Files = pm.Files()
		snap.Profile = project.DetectProfile(p.Path)
	}
	return snap
}

// Describe renders the context for the "context" meta command.
func (c *Context) Describe(pm *project.Manager, projectsRoot string) string {
	projectName := "None"
	if p := pm.Current(); p != nil {
		projectName = p.Name
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	b.WriteString("current context:\n")
	fmt.Fprintf(&b, "  project root:    %s\n", projectsRoot)
	fmt.Fprintf(&b, "  current project: %s\n", projectName)
	fmt.Fprintf(&b, "  current file:    %s\n", c.currentFile)
	fmt.Fprintf(&b, "  last action:     %s\n", c.lastAction)
	fmt.Fprintf(&b, "  session start:   %s\n", c.sessionStart.Format(time.RFC3339))
	return b.String()
}
