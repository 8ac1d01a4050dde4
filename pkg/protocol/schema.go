package protocol

// SchemaDDL defines the SQLite schema for the assistant runtime database.
// Single table: events, the append-only lifecycle log for commands and
// plans. Execute against a SQLite database with: db.Exec(SchemaDDL)
const SchemaDDL = `
-- Runtime event log: command and plan lifecycle events
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    plan_id TEXT,
    project TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_plan ON events(plan_id);
`

// Event represents a row in the events SQLite table.
type Event struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Source    string `json:"source"`
	PlanID    string `json:"plan_id"`
	Project   string `json:"project"`
	Payload   string `json:"payload"`
	CreatedAt string `json:"created_at"`
}

// Event type constants written by the processing loop.
const (
	EventCommandReceived = "command_received"
	EventProjectCommand  = "project_command"
	EventSynthesizing    = "synthesizing"
	EventPlanParsed      = "plan_parsed"
	EventPlanValidated   = "plan_validated"
	EventPlanDispatched  = "plan_dispatched"
	EventPlanCompleted   = "plan_completed"
	EventPlanFailed      = "plan_failed"
	EventShutdown        = "shutdown"
)
