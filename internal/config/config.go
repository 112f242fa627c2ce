// Package config loads planforge workspace configuration from
// .planforge/config.yaml. Missing files and missing fields fall back to
// documented defaults; scheduling limits are configuration, not
// constants.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/planforge/planforge/internal/errors"
)

// WorkspaceDir is the root of all persisted planforge state.
const WorkspaceDir = ".planforge"

// Config is the workspace configuration.
type Config struct {
	// Root is the workspace directory. Not serialized; derived from the
	// config file location or the working directory.
	Root string `yaml:"-"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Verify    VerifyConfig    `yaml:"verify"`
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
}

// GeneratorConfig names the external content-generation command. The
// pipeline core never writes planning text itself.
type GeneratorConfig struct {
	Command string `yaml:"command"`
}

// SchedulerConfig bounds work-package formation.
type SchedulerConfig struct {
	// MaxBatches caps packages formed per queue-work call.
	MaxBatches int `yaml:"max_batches"`
	// MinPoints and MaxPoints bound the per-package effort budget
	// (S=1, M=2, L=4).
	MinPoints int `yaml:"min_points"`
	MaxPoints int `yaml:"max_points"`
	// MinTasks and MaxTasks bound how many tasks one package may hold.
	MinTasks int `yaml:"min_tasks"`
	MaxTasks int `yaml:"max_tasks"`
}

// VerifyConfig controls work-package verification.
type VerifyConfig struct {
	// Commands seed every new package's verify_commands.
	Commands []string `yaml:"commands"`
	// Timeout per command, e.g. "10m".
	Timeout string `yaml:"timeout"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Root: WorkspaceDir,
		Scheduler: SchedulerConfig{
			MaxBatches: 4,
			MinPoints:  4,
			MaxPoints:  8,
			MinTasks:   1,
			MaxTasks:   5,
		},
		Verify: VerifyConfig{
			Timeout: "10m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the workspace config beneath root, falling back to
// defaults when the file is absent. A malformed file is an error, not a
// silent fallback.
func Load(root string) (*Config, error) {
	if root == "" {
		root = WorkspaceDir
	}
	cfg := Default()
	cfg.Root = root

	path := filepath.Join(root, "config.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed,
			fmt.Sprintf("cannot read config %s", path), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArtifactParse,
			fmt.Sprintf("malformed config %s", path), err).
			WithSuggestion("fix the YAML syntax or delete the file to use defaults")
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config file beneath its root.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed,
			fmt.Sprintf("cannot create workspace %s", c.Root), err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "cannot marshal config", err)
	}
	path := filepath.Join(c.Root, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("cannot write config %s", path), err)
	}
	return nil
}

// StoreRoot returns the artifact store root directory. The store
// namespaces ideas beneath it itself, so this is the workspace root.
func (c *Config) StoreRoot() string { return c.Root }

// IndexPath returns the global work-package index database path.
func (c *Config) IndexPath() string { return filepath.Join(c.Root, "workpackages.db") }

// VerifyTimeout parses the verification timeout, falling back to the
// default on a missing or malformed value.
func (c *Config) VerifyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Verify.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Scheduler.MaxBatches <= 0 {
		c.Scheduler.MaxBatches = def.Scheduler.MaxBatches
	}
	if c.Scheduler.MinPoints <= 0 {
		c.Scheduler.MinPoints = def.Scheduler.MinPoints
	}
	if c.Scheduler.MaxPoints <= 0 {
		c.Scheduler.MaxPoints = def.Scheduler.MaxPoints
	}
	if c.Scheduler.MinTasks <= 0 {
		c.Scheduler.MinTasks = def.Scheduler.MinTasks
	}
	if c.Scheduler.MaxTasks <= 0 {
		c.Scheduler.MaxTasks = def.Scheduler.MaxTasks
	}
	if c.Verify.Timeout == "" {
		c.Verify.Timeout = def.Verify.Timeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
