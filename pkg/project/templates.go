package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// templateDirs is the standard layout created for every new project.
var templateDirs = []string{"src", "tests", "docs"}

// scaffold creates the project directory tree and starter files.
func scaffold(dir string, p *Project) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, sub := range templateDirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	readme := fmt.Sprintf("# %s\n\n%s\n\nCreated %s.\n",
		p.Name, p.Description, p.CreatedAt.Format("2006-01-02"))
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "docs", "NOTES.md"), []byte("# Notes\n"), 0o644)
}

// SubdirFor picks the template subdirectory a new file belongs in,
// based on its name: test files go to tests/, everything else to src/.
func SubdirFor(fileName string) string {
	base := filepath.Base(fileName)
	if strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(base, "_test.py") ||
		strings.HasSuffix(base, "_test.go") {
		return "tests"
	}
	return "src"
}
