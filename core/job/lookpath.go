package job

import (
	"os"
	"path/filepath"
	"strings"

	"mar.sh/marsh/core/env"
)

// LookPath resolves a command name against the store's search path. Names
// containing a path separator are checked directly. The result
// distinguishes a missing command from one that exists but is not
// executable.
func LookPath(store *env.Store, name string) (string, error) {
	if strings.Contains(name, "/") {
		if err := checkExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}

	foundNonExec := false
	for _, dir := range store.PathEntries() {
		candidate := filepath.Join(dir, name)
		fi, err := os.Stat(candidate)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if fi.Mode()&0111 != 0 {
			return candidate, nil
		}
		foundNonExec = true
	}

	if foundNonExec {
		return "", &PermissionError{Name: name}
	}
	return "", &NotFoundError{Name: name}
}

func checkExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return &NotFoundError{Name: path}
	}
	if fi.Mode()&0111 == 0 {
		return &PermissionError{Name: path}
	}
	return nil
}
