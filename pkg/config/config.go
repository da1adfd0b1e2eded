// Package config loads the optional user configuration file. Both TOML
// (ccmgr.toml) and YAML (ccmgr.yaml) are accepted; TOML wins when both
// exist. Missing files fall back to defaults.
package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/errors"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// Config file names probed inside the config directory, in order.
const (
	TOMLFileName = "ccmgr.toml"
	YAMLFileName = "ccmgr.yaml"
)

// DefaultConcurrency bounds parallel multi-source deploys.
const DefaultConcurrency = 3

// Config is the user-tunable configuration.
type Config struct {
	Deploy DeployConfig `toml:"deploy" yaml:"deploy"`
}

// DeployConfig tunes the deployment engine.
type DeployConfig struct {
	// ConflictStrategy is the default strategy when none is given on the
	// command line: skip, overwrite or prompt.
	ConflictStrategy string `toml:"conflict_strategy" yaml:"conflict_strategy"`

	// Extensions is the type-based allow-list. A per-source list still
	// wins over this.
	Extensions []string `toml:"extensions" yaml:"extensions"`

	// Concurrency bounds parallel multi-source deploys.
	Concurrency int `toml:"concurrency" yaml:"concurrency"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Deploy: DeployConfig{
			ConflictStrategy: string(types.StrategyPrompt),
			Extensions:       []string{".md"},
			Concurrency:      DefaultConcurrency,
		},
	}
}

// Load reads the configuration from configDir, merging it over the
// defaults. A missing file is not an error.
func Load(configDir string) (*Config, error) {
	logger := logging.GetLogger("config")
	cfg := Default()

	tomlPath := filepath.Join(configDir, TOMLFileName)
	if data, err := os.ReadFile(tomlPath); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "invalid config file %s", tomlPath)
		}
		logger.Debug().Str("path", tomlPath).Msg("loaded config")
		return normalize(cfg)
	}

	yamlPath := filepath.Join(configDir, YAMLFileName)
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "invalid config file %s", yamlPath)
		}
		logger.Debug().Str("path", yamlPath).Msg("loaded config")
		return normalize(cfg)
	}

	logger.Debug().Str("dir", configDir).Msg("no config file found, using defaults")
	return cfg, nil
}

// normalize validates loaded values and fills gaps with defaults.
func normalize(cfg *Config) (*Config, error) {
	if cfg.Deploy.ConflictStrategy == "" {
		cfg.Deploy.ConflictStrategy = string(types.StrategyPrompt)
	}
	if _, err := types.ParseConflictStrategy(cfg.Deploy.ConflictStrategy); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "invalid conflict strategy in config")
	}
	if len(cfg.Deploy.Extensions) == 0 {
		cfg.Deploy.Extensions = []string{".md"}
	}
	for i, ext := range cfg.Deploy.Extensions {
		if ext != "" && ext[0] != '.' {
			cfg.Deploy.Extensions[i] = "." + ext
		}
	}
	if cfg.Deploy.Concurrency <= 0 {
		cfg.Deploy.Concurrency = DefaultConcurrency
	}
	return cfg, nil
}
