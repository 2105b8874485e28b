package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
)

// Config is the application configuration file.
type Config struct {
	Seed           string  `yaml:"seed"`            // YAML seed file
	Rules          string  `yaml:"rules"`           // similarity rule text
	SQLite         string  `yaml:"sqlite"`          // SQLite seed database
	Builtin        bool    `yaml:"builtin"`         // include the built-in seed
	MinDegree      float64 `yaml:"min_degree"`      // default query threshold
	GraphThreshold float64 `yaml:"graph_threshold"` // default graph link threshold
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Builtin:        true,
		MinDegree:      0.01,
		GraphThreshold: 0.3,
	}
}

// LoadConfig loads a configuration from a YAML file. Unset fields keep their
// Default values; relative paths are resolved against the file's directory.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(internalerr.ErrInvalidConfig, "parse %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}

	dir := filepath.Dir(path)
	cfg.Seed = resolve(dir, cfg.Seed)
	cfg.Rules = resolve(dir, cfg.Rules)
	cfg.SQLite = resolve(dir, cfg.SQLite)
	return cfg, nil
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if !internalerr.ValidDegree(c.MinDegree) {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "min_degree %v outside [0, 1]", c.MinDegree)
	}
	if !internalerr.ValidDegree(c.GraphThreshold) {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "graph_threshold %v outside [0, 1]", c.GraphThreshold)
	}
	return nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
