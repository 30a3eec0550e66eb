// Package config loads fileloop configuration from .fileloop/config.yaml and
// merges CLI flag overrides on top. Missing files yield defaults; malformed
// files are errors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GitConfig represents the git integration settings.
type GitConfig struct {
	// Enabled turns on git integration: change tracking for the
	// authorization guard and optional branch/commit automation.
	Enabled bool `yaml:"enabled"`

	// AutoBranch creates a dedicated branch before processing starts.
	AutoBranch bool `yaml:"auto_branch"`

	// AutoCommit commits each file's changes when it completes.
	AutoCommit bool `yaml:"auto_commit"`

	// CommitMessage is the commit message template. Supports {file},
	// {file_stem}, and {task_id} placeholders.
	CommitMessage string `yaml:"commit_message"`
}

// Config represents fileloop configuration options.
type Config struct {
	// Concurrency is the number of parallel workers.
	Concurrency int `yaml:"concurrency"`

	// MaxRetries is the fixup attempt budget per file.
	MaxRetries int `yaml:"max_retries"`

	// Timeout is the maximum duration of one external operation.
	Timeout time.Duration `yaml:"timeout"`

	// Allowlist is the per-file allowlist pattern template.
	Allowlist string `yaml:"allowlist"`

	// TasksDir is where task state records and the registry live.
	TasksDir string `yaml:"tasks_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written.
	LogDir string `yaml:"log_dir"`

	// HistoryDB is the path of the attempt history database.
	HistoryDB string `yaml:"history_db"`

	// Git contains git integration settings.
	Git GitConfig `yaml:"git"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 5,
		MaxRetries:  3,
		Timeout:     10 * time.Minute,
		Allowlist:   "{file_stem}*",
		TasksDir:    filepath.Join(".fileloop", "tasks"),
		LogLevel:    "info",
		LogDir:      filepath.Join(".fileloop", "logs"),
		HistoryDB:   filepath.Join(".fileloop", "history.db"),
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings, so parse through an intermediate form.
	type yamlConfig struct {
		Concurrency int       `yaml:"concurrency"`
		MaxRetries  *int      `yaml:"max_retries"`
		Timeout     string    `yaml:"timeout"`
		Allowlist   string    `yaml:"allowlist"`
		TasksDir    string    `yaml:"tasks_dir"`
		LogLevel    string    `yaml:"log_level"`
		LogDir      string    `yaml:"log_dir"`
		HistoryDB   string    `yaml:"history_db"`
		Git         GitConfig `yaml:"git"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.Concurrency != 0 {
		cfg.Concurrency = yamlCfg.Concurrency
	}
	// max_retries: 0 is a meaningful setting, so zero cannot mean "absent".
	if yamlCfg.MaxRetries != nil {
		cfg.MaxRetries = *yamlCfg.MaxRetries
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.Allowlist != "" {
		cfg.Allowlist = yamlCfg.Allowlist
	}
	if yamlCfg.TasksDir != "" {
		cfg.TasksDir = yamlCfg.TasksDir
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.HistoryDB != "" {
		cfg.HistoryDB = yamlCfg.HistoryDB
	}
	cfg.Git = yamlCfg.Git

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .fileloop/config.yaml in the
// specified directory. If the directory or file doesn't exist, returns
// default configuration without error.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".fileloop", "config.yaml"))
}

// FlagOverrides carries the CLI flag values the user actually set. Nil
// pointers mean "not given on the command line" so config file values and
// defaults survive.
type FlagOverrides struct {
	Concurrency   *int
	MaxRetries    *int
	Timeout       *time.Duration
	Allowlist     *string
	TasksDir      *string
	LogLevel      *string
	LogDir        *string
	HistoryDB     *string
	GitEnabled    *bool
	GitBranch     *bool
	GitCommit     *bool
	CommitMessage *string
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values, so flags take precedence over the
// config file.
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if f.Concurrency != nil {
		c.Concurrency = *f.Concurrency
	}
	if f.MaxRetries != nil {
		c.MaxRetries = *f.MaxRetries
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.Allowlist != nil {
		c.Allowlist = *f.Allowlist
	}
	if f.TasksDir != nil {
		c.TasksDir = *f.TasksDir
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.HistoryDB != nil {
		c.HistoryDB = *f.HistoryDB
	}
	if f.GitEnabled != nil {
		c.Git.Enabled = *f.GitEnabled
	}
	if f.GitBranch != nil {
		c.Git.AutoBranch = *f.GitBranch
	}
	if f.GitCommit != nil {
		c.Git.AutoCommit = *f.GitCommit
	}
	if f.CommitMessage != nil {
		c.Git.CommitMessage = *f.CommitMessage
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.TasksDir == "" {
		return fmt.Errorf("tasks_dir cannot be empty")
	}
	if (c.Git.AutoBranch || c.Git.AutoCommit) && !c.Git.Enabled {
		return fmt.Errorf("git.auto_branch and git.auto_commit require git.enabled")
	}
	return nil
}
