// Package config defines the application configuration and its loader.
package config

import "fmt"

// Config is the root configuration.
type Config struct {
	Study         StudyConfig         `mapstructure:"study"`
	Loop          LoopConfig          `mapstructure:"loop"`
	Store         StoreConfig         `mapstructure:"store"`
	Output        OutputConfig        `mapstructure:"output"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StudyConfig carries study-level settings used during remediation.
type StudyConfig struct {
	ID string `mapstructure:"id"`
	// Constants supplies values for derivable variables added by fixes,
	// keyed by variable name.
	Constants map[string]string `mapstructure:"constants"`
}

// LoopConfig bounds the fix loop.
type LoopConfig struct {
	MaxIterations int `mapstructure:"maxIterations"`
}

// StoreConfig controls run-history persistence.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
}

// ObservabilityConfig carries logging settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.maxIterations must be positive, got %d", c.Loop.MaxIterations)
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.enabled is true")
	}
	return nil
}
