package synth

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"codeme/pkg/protocol"
)

// Normalize strips the markdown code fences models wrap JSON in, plus
// surrounding whitespace. Input without fences passes through intact.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// ParsePlan turns a raw completion into a validated ActionPlan. A plan
// that fails to decode, names an unknown action, or lacks a description
// is a PlanParseError; the caller treats those as recoverable.
func ParsePlan(raw string) (*protocol.ActionPlan, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil, &protocol.PlanParseError{Reason: "empty response", Raw: raw}
	}

	var plan protocol.ActionPlan
	if err := json.Unmarshal([]byte(normalized), &plan); err != nil {
		return nil, &protocol.PlanParseError{Reason: "invalid JSON: " + err.Error(), Raw: raw}
	}
	if !plan.Kind.Valid() {
		return nil, &protocol.PlanParseError{Reason: "unknown action_type " + string(plan.Kind), Raw: raw}
	}
	if strings.TrimSpace(plan.Description) == "" {
		return nil, &protocol.PlanParseError{Reason: "missing description", Raw: raw}
	}
	for _, step := range plan.Steps {
		if step.Kind == "" {
			return nil, &protocol.PlanParseError{Reason: "step missing type", Raw: raw}
		}
	}

	plan.ID = uuid.NewString()
	return &plan, nil
}
