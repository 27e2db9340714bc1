package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// LocalOverlayFile is the name of an optional local-dev config overlay.
	LocalOverlayFile = "sentinel.local.yaml"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
//  1. Built-in defaults
//  2. Environment variables
//  3. Local-dev YAML overlay (sentinel.local.yaml in the current or a
//     parent directory), for values awkward to set as env vars
func (l *Loader) Load() (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	overlayPath := l.findLocalOverlay()
	if overlayPath != "" {
		overlay, err := LoadFromFile(overlayPath)
		if err != nil {
			l.logger.Warn("failed to load local config overlay", slog.String("path", overlayPath), slog.String("error", err.Error()))
		} else {
			l.logger.Debug("loaded local config overlay", slog.String("path", overlayPath))
			cfg.Merge(overlay)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findLocalOverlay searches for sentinel.local.yaml in the current and
// parent directories.
func (l *Loader) findLocalOverlay() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		path := filepath.Join(dir, LocalOverlayFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
