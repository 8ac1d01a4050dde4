package synth

import (
	"fmt"
	"strings"

	"codeme/pkg/project"
)

// Snapshot is the slice of assistant state folded into the prompt so
// plans can resolve references like "this file" or "the tests".
type Snapshot struct {
	ProjectName string
	ProjectRoot string
	CurrentFile string
	LastAction  string
	CurrentTask string
	Files       []string
	Profile     project.Profile
}

// SystemPrompt constrains the model to emit a bare JSON action plan.
const SystemPrompt = "You are a coding assistant that converts spoken and typed " +
	"commands into concrete coding actions. Respond with a single JSON object " +
	"representing the action plan and nothing else."

// BuildPrompt renders the command and context snapshot into the user
// message. The schema block mirrors what the parser accepts.
func BuildPrompt(rawCommand string, snap Snapshot) string {
	projectName := snap.ProjectName
	if projectName == "" {
		projectName = "None"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Parse the command below and respond with a SINGLE JSON object containing the action plan.\n")
	fmt.Fprintf(&b, "DO NOT include any explanatory text, ONLY valid JSON.\n\n")
	fmt.Fprintf(&b, "Command: %s\n", rawCommand)
	fmt.Fprintf(&b, "Current Context:\n")
	fmt.Fprintf(&b, "- Project Root: %s\n", snap.ProjectRoot)
	fmt.Fprintf(&b, "- Current Project: %s\n", projectName)
	fmt.Fprintf(&b, "- Current File: %s\n", snap.CurrentFile)
	fmt.Fprintf(&b, "- Last Action: %s\n", snap.LastAction)
	fmt.Fprintf(&b, "- Current Task: %s\n", snap.CurrentTask)
	if snap.Profile.Language != "" {
		fmt.Fprintf(&b, "- Project Language: %s\n", snap.Profile.Language)
		if snap.Profile.TestCmd != "" {
			fmt.Fprintf(&b, "- Test Command: %s\n", snap.Profile.TestCmd)
		}
	}
	if len(snap.Files) > 0 {
		fmt.Fprintf(&b, "- Project Files: %s\n", strings.Join(snap.Files, ", "))
	}

	b.WriteString(`
When handling file operations:
1. Use the current file path when the command refers to "this file" or similar.
2. For edits, include both the file path and the complete new content.
3. For showing file contents, use the "analyze_code" step type.
4. Place new files in the appropriate project subdirectory (src/tests/docs).

Required JSON format:
{
    "action_type": "code|test|deploy|navigate",
    "description": "what will be done",
    "steps": [
        {
            "type": "create_file|modify_file|analyze_code|build|deploy|rollback|status|generate_tests|run_tests|analyze_coverage",
            "params": {
                "file_name": "path/to/file",
                "content": "complete content to write",
                "mode": "write|append|prepend"
            }
        }
    ],
    "code": "complete file content",
    "file_path": "path/to/file"
}
`)
	return b.String()
}
