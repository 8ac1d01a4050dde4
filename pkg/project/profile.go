package project

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Profile describes the detected language and tooling of a project. It
// is folded into the synthesizer prompt so plans pick the right file
// extensions and test commands.
type Profile struct {
	Language  string `yaml:"language"`
	TestCmd   string `yaml:"test_cmd,omitempty"`
	FormatCmd string `yaml:"format_cmd,omitempty"`
}

// DetectProfile probes the project root for well-known manifests. An
// explicit .codeme.yaml override in the project root wins over
// detection; an empty Profile means nothing was recognized.
func DetectProfile(projectRoot string) Profile {
	if p, ok := loadProfileOverride(projectRoot); ok {
		return p
	}

	if p, ok := detectPython(projectRoot); ok {
		return p
	}
	if p, ok := detectJS(projectRoot); ok {
		return p
	}
	if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
		return Profile{Language: "go", TestCmd: "go test ./...", FormatCmd: "gofmt -w"}
	}
	return Profile{}
}

// loadProfileOverride reads <root>/.codeme.yaml if present.
func loadProfileOverride(projectRoot string) (Profile, bool) {
	data, err := os.ReadFile(filepath.Join(projectRoot, ".codeme.yaml"))
	if err != nil {
		return Profile{}, false
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil || p.Language == "" {
		return Profile{}, false
	}
	return p, true
}

// detectPython recognizes a pyproject.toml and reads the project name
// out of it to confirm it parses.
func detectPython(projectRoot string) (Profile, bool) {
	data, err := os.ReadFile(filepath.Join(projectRoot, "pyproject.toml"))
	if err != nil {
		return Profile{}, false
	}
	var pyproject map[string]any
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return Profile{}, false
	}

	p := Profile{Language: "python", TestCmd: "pytest", FormatCmd: "autopep8 --in-place"}
	// [tool.pytest] or [tool.black] presence refines the defaults.
	if tool, ok := pyproject["tool"].(map[string]any); ok {
		if _, ok := tool["black"]; ok {
			p.FormatCmd = "black"
		}
	}
	return p, true
}

// detectJS recognizes a package.json and prefers its test script.
func detectJS(projectRoot string) (Profile, bool) {
	data, err := os.ReadFile(filepath.Join(projectRoot, "package.json"))
	if err != nil {
		return Profile{}, false
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return Profile{}, false
	}

	p := Profile{Language: "javascript", TestCmd: "node --test"}
	if s, ok := pkg.Scripts["test"]; ok && s != "" {
		p.TestCmd = "npm test"
	}
	return p, true
}
