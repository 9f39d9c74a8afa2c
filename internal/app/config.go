package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/applier"
	"github.com/specialistvlad/rendergraph/internal/prefs"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Paths are document files, directories or glob patterns.
	Paths []string
	Mode  applier.Mode
	// DryRun counts writes without performing them.
	DryRun bool
	// Trace exports spans to the log writer.
	Trace bool
	Prefs prefs.Prefs
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one document path is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = applier.Viewer
	}
	if _, err := applier.ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if err := cfg.Prefs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences: %w", err)
	}
	return &cfg, nil
}

// toggles maps the viewer preferences onto applier toggles.
func (c *Config) toggles() applier.Toggles {
	nv := c.Prefs.NodeViewer
	return applier.Toggles{
		Scripts:         nv.UpdateScripts,
		Path:            nv.UpdatePath,
		ViewLayerPasses: nv.UpdateViewLayerPasses,
	}
}
