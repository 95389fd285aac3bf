package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist or
// a directory holds no scenario files.
type ScenarioNotFoundError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("no scenarios at %s: %s", e.Path, e.Reason)
}

// FindScenarios resolves a path to scenario files. A file is returned as
// is; a directory is walked for .yaml and .yml files, returned in lexical
// order.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path, Reason: "path does not exist"}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(p) {
		case ".yaml", ".yml":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &ScenarioNotFoundError{Path: path, Reason: "directory contains no .yaml or .yml files"}
	}

	sort.Strings(files)
	return files, nil
}
