package synth

import (
	"errors"
	"strings"
	"testing"

	"codeme/pkg/protocol"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading fence only", "```json\n{\"a\": 1}", `{"a": 1}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePlanFencedCodePlan(t *testing.T) {
	raw := "```json\n" + `{
  "action_type": "code",
  "description": "create hello script",
  "steps": [
    {"type": "create_file", "params": {"file_name": "hello.py", "content": "print('hi')\n"}}
  ],
  "code": "print('hi')\n",
  "file_path": "hello.py"
}` + "\n```"

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Kind != protocol.ActionCode {
		t.Errorf("Kind = %q, want code", plan.Kind)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Kind != protocol.StepCreateFile {
		t.Fatalf("Steps = %+v, want one create_file", plan.Steps)
	}
	if got := plan.Steps[0].StringParam("file_name"); got != "hello.py" {
		t.Errorf("file_name param = %q", got)
	}
	if plan.ID == "" {
		t.Error("plan ID not assigned")
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "", "empty response"},
		{"not json", "sure, here is the plan:", "invalid JSON"},
		{"unknown action", `{"action_type": "dance", "description": "x"}`, "unknown action_type"},
		{"missing description", `{"action_type": "code", "description": "  "}`, "missing description"},
		{"step without type", `{"action_type": "code", "description": "x", "steps": [{"params": {}}]}`, "step missing type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.raw)
			var pe *protocol.PlanParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want PlanParseError", err)
			}
			if !strings.Contains(pe.Reason, tt.reason) {
				t.Errorf("Reason = %q, want substring %q", pe.Reason, tt.reason)
			}
			if pe.Raw != tt.raw {
				t.Errorf("Raw not preserved: %q", pe.Raw)
			}
		})
	}
}

func TestParsePlanAssignsUniqueIDs(t *testing.T) {
	raw := `{"action_type": "navigate", "description": "open file"}`
	a, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	b, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("two plans share ID %q", a.ID)
	}
}
