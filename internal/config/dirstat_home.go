package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the dirstat home directory
const HomeEnv = "DIRSTAT_HOME"

// GetHome returns the dirstat home directory
// Priority order:
//  1. DIRSTAT_HOME environment variable (if set)
//  2. .dirstat in the current working directory
//
// The directory is created if it doesn't exist
func GetHome() (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, ".dirstat")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create dirstat home directory: %w", err)
	}
	return home, nil
}

// DefaultConfigPath returns $DIRSTAT_HOME/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// GetHistoryDBPath returns $DIRSTAT_HOME/history.db
func GetHistoryDBPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history.db"), nil
}
