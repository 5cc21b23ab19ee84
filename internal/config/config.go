// Package config provides unified configuration loading for brunel.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/brunel/internal/backup"
	"github.com/nvandessel/brunel/internal/export"
	"github.com/nvandessel/brunel/internal/logging"
	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
	"github.com/nvandessel/brunel/internal/store"
)

// FileName is the configuration file name inside the .brunel directory.
const FileName = "config.yaml"

// BrunelConfig contains all brunel configuration settings.
type BrunelConfig struct {
	// Model holds the neuron and network parameters.
	Model params.Params `json:"model" yaml:"model"`

	// Network tunes connectivity seeding and parallel stepping.
	Network NetworkConfig `json:"network" yaml:"network"`

	// Output controls the spike file and figures written after a run.
	Output OutputConfig `json:"output" yaml:"output"`

	// Store controls persistence of runs in the SQLite run store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Backup configures run store backups and their retention.
	Backup BackupConfig `json:"backup" yaml:"backup"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// NetworkConfig configures how networks are built and stepped.
type NetworkConfig struct {
	// Seed seeds the connectivity generator; 0 selects the fixed default.
	Seed uint64 `json:"seed" yaml:"seed"`

	// NoiseSeed seeds the background input; 0 draws a random seed per run.
	NoiseSeed uint64 `json:"noise_seed" yaml:"noise_seed"`

	// Workers is the number of goroutines per step; 1 steps sequentially.
	Workers int `json:"workers" yaml:"workers"`
}

// Options converts the section into network options.
func (c NetworkConfig) Options() network.Options {
	return network.Options{Seed: c.Seed, NoiseSeed: c.NoiseSeed, Workers: c.Workers}
}

// OutputConfig configures exported files.
type OutputConfig struct {
	Dir    string `json:"dir" yaml:"dir"`
	File   string `json:"file" yaml:"file"`
	Format string `json:"format" yaml:"format"` // "text" or "arrow"
	Plot   bool   `json:"plot" yaml:"plot"`
}

// StoreConfig configures the run store.
type StoreConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir holds runs.db. Empty means ~/.brunel. Supports ${VAR} and ~.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// BackupConfig configures run store backups. A backup is kept when any
// retention setting wants it.
type BackupConfig struct {
	// Dir holds backup files. Empty means ~/.brunel/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// MaxCount keeps the newest N backups.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps backups younger than this, e.g. "30d" or "2w".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxTotalSize keeps the newest backups up to this size, e.g. "100MB".
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// Policy builds the retention policy described by the section. With
// nothing configured the newest 10 backups are kept.
func (c BackupConfig) Policy() backup.RetentionPolicy {
	var policies []backup.RetentionPolicy
	if c.MaxCount > 0 {
		policies = append(policies, backup.CountPolicy{MaxCount: c.MaxCount})
	}
	if d, err := backup.ParseDuration(c.MaxAge); err == nil {
		policies = append(policies, backup.AgePolicy{MaxAge: d})
	}
	if n, err := backup.ParseSize(c.MaxTotalSize); err == nil {
		policies = append(policies, backup.SizePolicy{MaxTotalBytes: n})
	}
	switch len(policies) {
	case 0:
		return backup.CountPolicy{MaxCount: 10}
	case 1:
		return policies[0]
	default:
		return backup.AnyPolicy(policies)
	}
}

// LoggingConfig configures brunel's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to .brunel/events.jsonl.
	// "trace" additionally reports simulation progress.
	Level string `json:"level" yaml:"level"`
}

// Default returns a BrunelConfig with the reference simulation settings.
func Default() *BrunelConfig {
	return &BrunelConfig{
		Model: params.Default(),
		Network: NetworkConfig{
			Seed:    network.DefaultSeed,
			Workers: 1,
		},
		Output: OutputConfig{
			Dir:    ".",
			File:   params.DefaultOutputFileName,
			Format: string(export.FormatText),
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Backup: BackupConfig{
			MaxCount: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.brunel/config.yaml.
func DefaultPath() (string, error) {
	dir, err := store.GlobalBrunelPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads configuration from path, or from the default location when
// path is empty, then applies environment variable overrides.
// Order: defaults -> config file -> environment variables.
// An explicit path must exist; a missing default file is ignored.
func Load(path string) (*BrunelConfig, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	} else if defaultPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(defaultPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*BrunelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Output.Dir = expandPath(config.Output.Dir)
	config.Store.Dir = expandPath(config.Store.Dir)
	config.Backup.Dir = expandPath(config.Backup.Dir)

	return config, nil
}

// Save writes the configuration as YAML to path, creating its directory.
func (c *BrunelConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *BrunelConfig) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}

	if c.Network.Workers < 0 || c.Network.Workers > network.MaxWorkers {
		return fmt.Errorf("workers must be between 0 and %d, got %d", network.MaxWorkers, c.Network.Workers)
	}

	if _, err := export.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if c.Backup.MaxCount < 0 {
		return fmt.Errorf("backup.max_count must be non-negative, got %d", c.Backup.MaxCount)
	}
	if c.Backup.MaxAge != "" {
		if _, err := backup.ParseDuration(c.Backup.MaxAge); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	if c.Backup.MaxTotalSize != "" {
		if _, err := backup.ParseSize(c.Backup.MaxTotalSize); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// OutputFormat returns the parsed output format. Call Validate first.
func (c *BrunelConfig) OutputFormat() export.Format {
	f, _ := export.ParseFormat(c.Output.Format)
	return f
}

// envOverride maps an environment variable onto a configuration key.
type envOverride struct {
	env string
	key string
}

var envOverrides = []envOverride{
	{"BRUNEL_NEURONS", "model.neurons"},
	{"BRUNEL_STEP_SIZE", "model.step_size_ms"},
	{"BRUNEL_DELAY", "model.delay"},
	{"BRUNEL_EXTERNAL_CURRENT", "model.external_current"},
	{"BRUNEL_SEED", "network.seed"},
	{"BRUNEL_NOISE_SEED", "network.noise_seed"},
	{"BRUNEL_WORKERS", "network.workers"},
	{"BRUNEL_OUTPUT_DIR", "output.dir"},
	{"BRUNEL_OUTPUT_FILE", "output.file"},
	{"BRUNEL_OUTPUT_FORMAT", "output.format"},
	{"BRUNEL_PLOT", "output.plot"},
	{"BRUNEL_STORE_ENABLED", "store.enabled"},
	{"BRUNEL_STORE_DIR", "store.dir"},
	{"BRUNEL_BACKUP_DIR", "backup.dir"},
	{"BRUNEL_LOG_LEVEL", "logging.level"},
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *BrunelConfig) error {
	for _, o := range envOverrides {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		if err := config.Set(o.key, v); err != nil {
			return fmt.Errorf("%s: %w", o.env, err)
		}
	}
	return nil
}

// Keys lists every key understood by Get and Set.
func Keys() []string {
	return []string{
		"model.step_size_ms", "model.delay", "model.refractory_period",
		"model.neurons", "model.excitatory_percent", "model.connection_ratio",
		"model.threshold_mv", "model.reset_potential_mv", "model.initial_potential_mv",
		"model.time_constant_ms", "model.connections", "model.excitatory_amplitude_mv",
		"model.inhibitory_ratio", "model.external_ratio", "model.external_current",
		"model.final_time", "model.window_begin", "model.window_end",
		"network.seed", "network.noise_seed", "network.workers",
		"output.dir", "output.file", "output.format", "output.plot",
		"store.enabled", "store.dir",
		"backup.dir", "backup.max_count", "backup.max_age", "backup.max_total_size",
		"logging.level",
	}
}

// Get retrieves a configuration value by dot-notation key.
func (c *BrunelConfig) Get(key string) (any, bool) {
	if f, ok := c.floatField(key); ok {
		return *f, true
	}
	if i, ok := c.intField(key); ok {
		return *i, true
	}
	switch key {
	case "network.seed":
		return c.Network.Seed, true
	case "network.noise_seed":
		return c.Network.NoiseSeed, true
	case "output.dir":
		return c.Output.Dir, true
	case "output.file":
		return c.Output.File, true
	case "output.format":
		return c.Output.Format, true
	case "output.plot":
		return c.Output.Plot, true
	case "store.enabled":
		return c.Store.Enabled, true
	case "store.dir":
		return c.Store.Dir, true
	case "backup.dir":
		return c.Backup.Dir, true
	case "backup.max_age":
		return c.Backup.MaxAge, true
	case "backup.max_total_size":
		return c.Backup.MaxTotalSize, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set assigns a configuration value by dot-notation key, parsing value
// for the key's type.
func (c *BrunelConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	if f, ok := c.floatField(key); ok {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		*f = v
		return nil
	}
	if i, ok := c.intField(key); ok {
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		*i = v
		return nil
	}
	switch key {
	case "network.seed", "network.noise_seed":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed for %s: %s", key, value)
		}
		if key == "network.seed" {
			c.Network.Seed = v
		} else {
			c.Network.NoiseSeed = v
		}
	case "output.dir":
		c.Output.Dir = expandPath(value)
	case "output.file":
		c.Output.File = value
	case "output.format":
		f, err := export.ParseFormat(value)
		if err != nil {
			return err
		}
		c.Output.Format = string(f)
	case "output.plot":
		c.Output.Plot = parseBool(value)
	case "store.enabled":
		c.Store.Enabled = parseBool(value)
	case "store.dir":
		c.Store.Dir = expandPath(value)
	case "backup.dir":
		c.Backup.Dir = expandPath(value)
	case "backup.max_age":
		if _, err := backup.ParseDuration(value); err != nil {
			return err
		}
		c.Backup.MaxAge = value
	case "backup.max_total_size":
		if _, err := backup.ParseSize(value); err != nil {
			return err
		}
		c.Backup.MaxTotalSize = value
	case "logging.level":
		if !logging.ValidLevel(value) {
			return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", value)
		}
		c.Logging.Level = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func (c *BrunelConfig) floatField(key string) (*float64, bool) {
	m := &c.Model
	fields := map[string]*float64{
		"model.step_size_ms":            &m.StepSize,
		"model.excitatory_percent":      &m.ExcitatoryPercent,
		"model.connection_ratio":        &m.ConnectionRatio,
		"model.threshold_mv":            &m.Threshold,
		"model.reset_potential_mv":      &m.ResetPotential,
		"model.initial_potential_mv":    &m.InitialPotential,
		"model.time_constant_ms":        &m.TimeConstant,
		"model.connections":             &m.Connections,
		"model.excitatory_amplitude_mv": &m.ExcitatoryAmplitude,
		"model.inhibitory_ratio":        &m.InhibitoryRatio,
		"model.external_ratio":          &m.ExternalRatio,
		"model.external_current":        &m.ExternalCurrent,
	}
	f, ok := fields[key]
	return f, ok
}

func (c *BrunelConfig) intField(key string) (*int, bool) {
	m := &c.Model
	fields := map[string]*int{
		"model.delay":             &m.Delay,
		"model.refractory_period": &m.RefractoryPeriod,
		"model.neurons":           &m.Neurons,
		"model.final_time":        &m.FinalTime,
		"model.window_begin":      &m.WindowBegin,
		"model.window_end":        &m.WindowEnd,
		"network.workers":         &c.Network.Workers,
		"backup.max_count":        &c.Backup.MaxCount,
	}
	i, ok := fields[key]
	return i, ok
}

func parseBool(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// expandPath expands ${VAR} patterns and a leading ~ in a path.
func expandPath(s string) string {
	if strings.Contains(s, "${") {
		s = os.Expand(s, os.Getenv)
	}
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}
