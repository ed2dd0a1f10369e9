// Package homedir resolves the wenshape home directory, the way
// internal/home does for shelf (~/.shelf vs ~/.wenshape).
package homedir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the wenshape home directory.
	DefaultDirName = ".wenshape"

	// DataDirName is the subdirectory for project data trees.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the wenshape home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path. If path is empty, uses the
// default (~/.wenshape).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string { return d.path }

// DataPath returns the path to the project data directory.
func (d *Dir) DataPath() string { return filepath.Join(d.path, DataDirName) }

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string { return filepath.Join(d.path, ConfigFileName) }

// EnsureExists creates the home directory and subdirectories if absent.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
