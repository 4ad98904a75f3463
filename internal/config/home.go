package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the state directory used for config, logs, cache and history.
const HomeEnv = "DEEPRESEARCH_HOME"

const homeDirName = ".deepresearch"

// GetHome returns the deepresearch state directory.
// Priority order:
//  1. DEEPRESEARCH_HOME environment variable (if set)
//  2. The nearest ancestor of the working directory containing .deepresearch
//  3. .deepresearch under the current working directory
//
// The directory is created if it doesn't exist.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	if found := findHomeUpwards(cwd); found != "" {
		return found, nil
	}

	home := filepath.Join(cwd, homeDirName)
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create home directory: %w", err)
	}
	return home, nil
}

// findHomeUpwards walks from dir to the filesystem root looking for an
// existing .deepresearch directory.
func findHomeUpwards(dir string) string {
	current := dir
	for {
		candidate := filepath.Join(current, homeDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// DefaultConfigPath returns config.yaml inside the home directory.
func DefaultConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}
