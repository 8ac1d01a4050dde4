package protocol

import "fmt"

// Recoverable errors surface to the operator without stopping the
// processing loop. The dispatch boundary discriminates them with
// errors.As; anything not matching one of these types is still downgraded
// to recoverable there, never allowed to kill the loop.

// PlanParseError represents a malformed synthesizer response: invalid
// JSON after fence stripping, or a missing required field.
type PlanParseError struct {
	Reason string
	Raw    string // normalized response text, for the operator log
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("plan parse failed: %s", e.Reason)
}

// UnknownActionError represents a plan whose action kind is not one of
// the recognized enumerations.
type UnknownActionError struct {
	Kind string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action type %q", e.Kind)
}

// PathViolationError represents a path that resolves outside the sandbox
// roots. Violations are rejected, never silently corrected.
type PathViolationError struct {
	Path string
}

func (e *PathViolationError) Error() string {
	return fmt.Sprintf("path %q resolves outside the sandbox", e.Path)
}

// ProjectNotFoundError represents a lookup of a project that does not
// exist in the store.
type ProjectNotFoundError struct {
	Name string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %q not found", e.Name)
}

// NoProjectError is returned by handlers that need a loaded project when
// none is loaded (or the current reference failed re-validation).
type NoProjectError struct{}

func (e *NoProjectError) Error() string {
	return "no project loaded"
}

// StepError wraps a failure inside a handler step. It aborts the
// remaining steps of the plan but not the processing loop.
type StepError struct {
	Kind StepKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
