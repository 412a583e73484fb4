// Package dotdir resolves the .advisor/ directory that holds config.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the advisor directory.
	dirName = ".advisor"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to an existing .advisor/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.advisor/ dir
//  3. Home ~/.advisor/ dir
//
// If none is found, Target returns an empty string and callers fall back to
// defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		return m.ensure(overrideDir)
	}

	if dir, ok := m.localDir(); ok {
		return filepath.Abs(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if isDir(dir) {
		return filepath.Abs(dir)
	}

	return "", nil
}

// Ensure is like Target but creates ~/.advisor/ when no directory is found.
// Commands that write configuration use it.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return m.ensure(filepath.Join(home, dirName))
}

func (m *Manager) ensure(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating advisor directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// localDir reports the .advisor/ directory in the current working directory,
// if one exists.
func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(cwd, dirName)
	return dir, isDir(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
