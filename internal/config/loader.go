package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "CONFORM"

// Loader reads configuration from file and environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a configuration loader with defaults applied.
func NewLoader() *Loader {
	v := viper.New()

	v.SetDefault("study.id", "")
	v.SetDefault("loop.maxIterations", 5)
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", "conform.db")
	v.SetDefault("output.directory", ".")
	v.SetDefault("observability.logging.enabled", true)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "human")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads configuration, optionally from the file at path. Environment
// variables (prefixed CONFORM_) override file values; ${VAR} references in
// string values are expanded from the environment.
func (l *Loader) Load(path string) (Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// expandEnvVars resolves ${VAR} references in string-valued settings.
func expandEnvVars(cfg *Config) {
	cfg.Study.ID = os.ExpandEnv(cfg.Study.ID)
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)
	cfg.Output.Directory = os.ExpandEnv(cfg.Output.Directory)
	for k, v := range cfg.Study.Constants {
		cfg.Study.Constants[k] = os.ExpandEnv(v)
	}
}
