package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"codeme/pkg/protocol"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic data refresh from the assistant state dir.
type tickMsg time.Time

// snapshotMsg carries one refresh worth of dashboard data.
type snapshotMsg Snapshot

// refreshInterval is how often the dashboard re-reads assistant state.
const refreshInterval = 2 * time.Second

// tickCmd returns a command that sends a tickMsg after the refresh interval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshotCmd returns a tea.Cmd that reads the current state snapshot.
func fetchSnapshotCmd() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(fetchSnapshot(context.Background()))
	}
}

// Pane identifies the focused dashboard pane.
type Pane int

const (
	// ProjectsPane shows the project index.
	ProjectsPane Pane = iota
	// DeploymentsPane shows per-environment deployment status.
	DeploymentsPane
	// EventsPane shows the scrollable event feed.
	EventsPane

	paneCount
)

func (p Pane) String() string {
	switch p {
	case ProjectsPane:
		return "projects"
	case DeploymentsPane:
		return "deployments"
	case EventsPane:
		return "events"
	default:
		return "unknown"
	}
}

// Model is the Bubble Tea model for the codeme dashboard.
type Model struct {
	theme Theme
	pane  Pane
	snap  Snapshot

	// Event feed scroll state.
	feed      viewport.Model
	feedReady bool

	width  int
	height int
}

// newModel creates a new Model with the projects pane active.
func newModel() Model {
	return Model{theme: DefaultTheme()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchSnapshotCmd(), tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.pane = (m.pane + 1) % paneCount
			return m, nil
		case "r":
			return m, fetchSnapshotCmd()
		}
		if m.pane == EventsPane && m.feedReady {
			var cmd tea.Cmd
			m.feed, cmd = m.feed.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeFeed()
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(), tickCmd())

	case snapshotMsg:
		m.snap = Snapshot(msg)
		if m.feedReady {
			m.feed.SetContent(m.renderEvents())
		}
		return m, nil
	}

	return m, nil
}

// resizeFeed (re)creates the viewport to fit the current window.
func (m *Model) resizeFeed() {
	// Header, tab bar and footer take four rows.
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	if !m.feedReady {
		m.feed = viewport.New(m.width, h)
		m.feedReady = true
	} else {
		m.feed.Width = m.width
		m.feed.Height = h
	}
	m.feed.SetContent(m.renderEvents())
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary)
	b.WriteString(title.Render("codeme dashboard"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.pane {
	case ProjectsPane:
		b.WriteString(m.renderProjects())
	case DeploymentsPane:
		b.WriteString(m.renderDeployments())
	case EventsPane:
		if m.feedReady {
			b.WriteString(m.feed.View())
		} else {
			b.WriteString(m.renderEvents())
		}
	}

	b.WriteString("\n")
	muted := lipgloss.NewStyle().Foreground(m.theme.Muted)
	b.WriteString(muted.Render("tab: switch pane  r: refresh  q: quit"))
	return b.String()
}

// renderTabs renders the pane selector line.
func (m Model) renderTabs() string {
	active := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary)
	inactive := lipgloss.NewStyle().Foreground(m.theme.Muted)

	parts := make([]string, 0, paneCount)
	for p := ProjectsPane; p < paneCount; p++ {
		if p == m.pane {
			parts = append(parts, active.Render("["+p.String()+"]"))
		} else {
			parts = append(parts, inactive.Render(" "+p.String()+" "))
		}
	}
	return strings.Join(parts, " ")
}

// renderProjects renders the project index pane.
func (m Model) renderProjects() string {
	if len(m.snap.Projects) == 0 {
		return "no projects"
	}

	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true)
	b.WriteString(header.Render(fmt.Sprintf("%-24s %6s  %s", "NAME", "FILES", "LAST ACCESSED")))
	b.WriteString("\n")
	for _, p := range m.snap.Projects {
		b.WriteString(fmt.Sprintf("%-24s %6d  %s\n",
			truncate(p.Name, 24), len(p.Files), p.LastAccessedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// renderDeployments renders the per-environment deployment pane.
func (m Model) renderDeployments() string {
	if len(m.snap.Deployments) == 0 {
		return "no deployments recorded"
	}

	ok := lipgloss.NewStyle().Foreground(m.theme.Success)
	bad := lipgloss.NewStyle().Foreground(m.theme.Error)

	names := make([]string, 0, len(m.snap.Deployments))
	for name := range m.snap.Deployments {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		env := m.snap.Deployments[name]
		b.WriteString(name + ": ")
		switch {
		case env == nil || env.Current == nil:
			b.WriteString("no active deployment")
		case env.Current.Status == "deployed":
			b.WriteString(ok.Render(env.Current.Version + " deployed"))
		default:
			b.WriteString(bad.Render(env.Current.Version + " " + env.Current.Status))
		}
		if env != nil {
			b.WriteString(fmt.Sprintf("  (%d in history)", len(env.History)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderEvents renders the event feed, oldest first.
func (m Model) renderEvents() string {
	if len(m.snap.Events) == 0 {
		return "no events"
	}

	warn := lipgloss.NewStyle().Foreground(m.theme.Error)

	var b strings.Builder
	for i := len(m.snap.Events) - 1; i >= 0; i-- {
		ev := m.snap.Events[i]
		line := fmt.Sprintf("%s  %-18s", ev.CreatedAt, ev.Type)
		if ev.Project != "" {
			line += "  [" + ev.Project + "]"
		}
		if ev.Payload != "" {
			line += "  " + truncate(ev.Payload, 60)
		}
		if ev.Type == protocol.EventPlanFailed {
			line = warn.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
