package protocol

import (
	"strings"
	"unicode/utf8"
)

// ProjectVerb identifies a direct project-management command. These
// commands are intercepted by the processing loop and executed
// directly, without plan synthesis.
type ProjectVerb string

// Project verb constants.
const (
	VerbCreate ProjectVerb = "create"
	VerbLoad   ProjectVerb = "load"
	VerbDelete ProjectVerb = "delete"
	VerbBackup ProjectVerb = "backup"
	VerbList   ProjectVerb = "list"
)

// ProjectCommand is a parsed direct project command.
type ProjectCommand struct {
	Verb        ProjectVerb
	Name        string // empty for backup/list
	Description string // create only; remainder of the line
}

// ParseProjectCommand matches raw against the fixed direct-command grammar:
//
//	create project <name> [description...]
//	load project <name>
//	delete project <name>
//	backup project
//	list projects
//
// It returns the parsed command and true on a match, or false when raw is
// not a project command and should go to the synthesizer instead.
func ParseProjectCommand(raw string) (ProjectCommand, bool) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) < 2 {
		return ProjectCommand{}, false
	}

	verb := strings.ToLower(fields[0])
	noun := strings.ToLower(fields[1])

	if verb == "list" && noun == "projects" && len(fields) == 2 {
		return ProjectCommand{Verb: VerbList}, true
	}
	if noun != "project" {
		return ProjectCommand{}, false
	}

	switch verb {
	case "backup":
		if len(fields) == 2 {
			return ProjectCommand{Verb: VerbBackup}, true
		}
		return ProjectCommand{}, false
	case "create":
		if len(fields) < 3 {
			return ProjectCommand{}, false
		}
		return ProjectCommand{
			Verb:        VerbCreate,
			Name:        fields[2],
			Description: strings.Join(fields[3:], " "),
		}, true
	case "load", "delete":
		if len(fields) != 3 {
			return ProjectCommand{}, false
		}
		return ProjectCommand{Verb: ProjectVerb(verb), Name: fields[2]}, true
	default:
		return ProjectCommand{}, false
	}
}

// ExtractWakeCommand checks utterance for the wake phrase as a
// case-insensitive substring. On a match it removes exactly the first
// occurrence of the phrase, trims surrounding whitespace, and returns the
// remainder with ok=true. An empty remainder is still a valid command.
func ExtractWakeCommand(utterance, wakePhrase string) (string, bool) {
	if wakePhrase == "" {
		return "", false
	}
	start, end := foldIndex(utterance, wakePhrase)
	if start < 0 {
		return "", false
	}
	rest := utterance[:start] + utterance[end:]
	return strings.TrimSpace(rest), true
}

// foldIndex finds the first case-insensitive occurrence of phrase in s
// and returns its byte bounds in s. Matching is rune-aligned: lowering
// the haystack can change byte lengths (e.g. U+0130), so offsets found
// in a lowered copy cannot be mapped back onto s.
func foldIndex(s, phrase string) (start, end int) {
	for i := range s {
		if n, ok := foldMatch(s[i:], phrase); ok {
			return i, i + n
		}
	}
	return -1, -1
}

// foldMatch reports whether s begins with phrase under case folding and
// returns the byte length of the matched prefix of s.
func foldMatch(s, phrase string) (int, bool) {
	n := 0
	for _, pr := range phrase {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || !strings.EqualFold(string(sr), string(pr)) {
			return 0, false
		}
		n += size
	}
	return n, true
}
