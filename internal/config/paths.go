package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".orchestrator"

// Paths holds resolved filesystem paths for orchestrator data.
type Paths struct {
	Base   string // ~/.orchestrator
	Config string // ~/.orchestrator/config.yaml
	Data   string // ~/.orchestrator/data
}

// ResolvePaths computes all standard paths from the home directory.
// ORCHESTRATOR_HOME overrides the base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ORCHESTRATOR_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ExecutableDir returns the directory containing the running binary, with
// symlinks resolved. It is the default root for agent discovery.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
