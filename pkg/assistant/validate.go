package assistant

import (
	"path/filepath"

	"codeme/pkg/protocol"
)

// validatePlan rejects a plan whose named paths would land outside the
// sandbox, before any handler work starts. Handlers still re-resolve at
// the point of I/O; this check exists so a hostile plan fails with
// nothing written.
func (a *Assistant) validatePlan(plan *protocol.ActionPlan) error {
	base := ""
	if p := a.pm.Current(); p != nil {
		base = p.Path
	}

	check := func(path string) error {
		if path == "" {
			return nil
		}
		var err error
		if filepath.IsAbs(path) {
			_, err = a.sb.Resolve(path)
		} else if base != "" {
			_, err = a.sb.Resolve(base, path)
		}
		return err
	}

	if err := check(plan.FilePath); err != nil {
		return err
	}
	for _, step := range plan.Steps {
		for _, key := range []string{"file_name", "file_path", "path", "source_file"} {
			if err := check(step.StringParam(key)); err != nil {
				return err
			}
		}
	}
	return nil
}
