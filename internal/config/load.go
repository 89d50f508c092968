package config

import (
	"fmt"
	"log/slog"
)

// Load reads, validates and resolves the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := Parse(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config %s: %w", path, err)
	}

	slog.Debug("loaded config",
		"path", path,
		"outputs", len(cfg.Outputs),
		"workload", len(cfg.Workload),
		"aggregate", cfg.Aggregate.Enabled,
	)
	return cfg, nil
}
