package protocol

import "time"

// Source identifies which intake produced a command.
type Source string

// Command source constants.
const (
	SourceVoice Source = "voice"
	SourceText  Source = "text"
)

// Command is a raw user command pulled from one of the intake sources.
// Commands are immutable once enqueued.
type Command struct {
	Source     Source    `json:"source"`
	RawText    string    `json:"raw_text"`
	ReceivedAt time.Time `json:"received_at"`
}

// ActionKind classifies an action plan and selects its handler.
type ActionKind string

// Action kind constants. The wire key is "action_type".
const (
	ActionCode     ActionKind = "code"
	ActionTest     ActionKind = "test"
	ActionDeploy   ActionKind = "deploy"
	ActionNavigate ActionKind = "navigate"
)

// Valid reports whether k is one of the four recognized action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionCode, ActionTest, ActionDeploy, ActionNavigate:
		return true
	default:
		return false
	}
}

// StepKind classifies a single step within an action plan.
type StepKind string

// Step kind constants. Unknown kinds are skipped by handlers, not fatal.
const (
	StepCreateFile      StepKind = "create_file"
	StepModifyFile      StepKind = "modify_file"
	StepAnalyzeCode     StepKind = "analyze_code"
	StepBuild           StepKind = "build"
	StepDeploy          StepKind = "deploy"
	StepRollback        StepKind = "rollback"
	StepStatus          StepKind = "status"
	StepGenerateTests   StepKind = "generate_tests"
	StepRunTests        StepKind = "run_tests"
	StepAnalyzeCoverage StepKind = "analyze_coverage"
)

// Step is one unit of work inside an action plan.
type Step struct {
	Kind   StepKind       `json:"type"`
	Params map[string]any `json:"params"`
}

// StringParam returns the named param as a string, or "" if absent or not
// a string.
func (s Step) StringParam(key string) string {
	v, ok := s.Params[key]
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// ActionPlan is the structured, validated description of work produced
// from a natural-language command by the plan synthesizer.
type ActionPlan struct {
	ID          string     `json:"id"`
	Kind        ActionKind `json:"action_type"`
	Description string     `json:"description"`
	Steps       []Step     `json:"steps"`
	Code        string     `json:"code,omitempty"`
	FilePath    string     `json:"file_path,omitempty"`
}

// PlanState tracks a plan through its lifecycle. No plan re-enters an
// earlier state; Failed is terminal and never retried.
type PlanState string

// Plan state constants.
const (
	PlanReceived     PlanState = "received"
	PlanSynthesizing PlanState = "synthesizing"
	PlanParsed       PlanState = "parsed"
	PlanValidated    PlanState = "validated"
	PlanDispatched   PlanState = "dispatched"
	PlanCompleted    PlanState = "completed"
	PlanFailed       PlanState = "failed"
)

// HistoryEntry records one processed command for the session history.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
	RawText   string    `json:"raw_text"`
}

// HistoryCap is the maximum number of entries kept in the persisted
// command history.
const HistoryCap = 1000

// DeployHistoryCap is the maximum number of deployments retained per
// environment in the deployment status file.
const DeployHistoryCap = 5
