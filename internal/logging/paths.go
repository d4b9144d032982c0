package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.minirag/logs, or a temp-dir fallback.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".minirag", "logs")
	}
	return filepath.Join(home, ".minirag", "logs")
}

// DefaultLogPath returns the shared log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "minirag.log")
}

// FindLogFile resolves the log file to view: explicit path first, then
// the default location.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found. Run a command with --debug first.\nExpected at: %s", path)
}
