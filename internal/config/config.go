// Package config provides unified configuration loading for kuramap.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/kuramap/internal/constants"
	"github.com/nvandessel/kuramap/internal/coupling"
	"github.com/nvandessel/kuramap/internal/lattice"
	"github.com/nvandessel/kuramap/internal/parallel"
	"github.com/nvandessel/kuramap/internal/store"
	"github.com/nvandessel/kuramap/internal/training"
)

// KuramapConfig contains all kuramap configuration settings.
type KuramapConfig struct {
	// Engine contains the lattice, oscillator and schedule parameters.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Run contains settings for the train and sync commands.
	Run RunConfig `json:"run" yaml:"run"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store contains settings for run-history recording.
	Store StoreConfig `json:"store" yaml:"store"`
}

// EngineConfig mirrors training.Config with config-file names. Enumerated
// values are strings here and parsed by TrainingConfig.
type EngineConfig struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`
	Dim  int `json:"dim" yaml:"dim"`

	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Radius       float64 `json:"radius" yaml:"radius"`
	MinRadius    float64 `json:"min_radius" yaml:"min_radius"`
	RadiusDecay  float64 `json:"radius_decay" yaml:"radius_decay"`
	Epochs       int     `json:"epochs" yaml:"epochs"`
	Tolerance    float64 `json:"tolerance" yaml:"tolerance"`

	// Neighborhood is "gaussian" or "hard_cutoff".
	Neighborhood string `json:"neighborhood" yaml:"neighborhood"`

	// CouplingMode is "none", "feature_driven" or "oscillator_driven".
	CouplingMode string `json:"coupling_mode" yaml:"coupling_mode"`

	CouplingStrength float64 `json:"coupling_strength" yaml:"coupling_strength"`
	Dt               float64 `json:"dt" yaml:"dt"`
	NoiseStd         float64 `json:"noise_std" yaml:"noise_std"`
	TicksPerStep     int     `json:"ticks_per_step" yaml:"ticks_per_step"`
	CouplingRadius   float64 `json:"coupling_radius" yaml:"coupling_radius"`
	FrequencyMean    float64 `json:"frequency_mean" yaml:"frequency_mean"`
	FrequencyStd     float64 `json:"frequency_std" yaml:"frequency_std"`
	FrequencyMin     float64 `json:"frequency_min" yaml:"frequency_min"`
	FrequencyMax     float64 `json:"frequency_max" yaml:"frequency_max"`
	FeedbackRate     float64 `json:"feedback_rate" yaml:"feedback_rate"`
	FeedbackRadius   float64 `json:"feedback_radius" yaml:"feedback_radius"`

	// Dynamic recomputes feature-affinity coupling after every epoch.
	// Requires coupling_mode feature_driven.
	Dynamic       bool    `json:"dynamic" yaml:"dynamic"`
	AffinitySigma float64 `json:"affinity_sigma" yaml:"affinity_sigma"`

	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers parallelizes per-unit computation. Results do not depend on it.
	// -1 sizes the pool to the host's physical cores.
	Workers int `json:"workers" yaml:"workers"`
}

// RunConfig configures what the CLI trains on and reports.
type RunConfig struct {
	// Samples is the number of synthetic two-cluster samples used when no
	// data file is given.
	Samples int `json:"samples" yaml:"samples"`

	// DataPath is a CSV file of samples. Supports ${VAR} syntax.
	DataPath string `json:"data_path,omitempty" yaml:"data_path,omitempty"`

	// CoherenceRadius is the lattice radius for cluster coherence and sync
	// maps.
	CoherenceRadius float64 `json:"coherence_radius" yaml:"coherence_radius"`

	// Record stores run history when true.
	Record bool `json:"record" yaml:"record"`
}

// LoggingConfig configures kuramap's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables epoch tracing to <dir>/trace.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where trace.jsonl is written. Empty means ~/.kuramap.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// StoreConfig configures run-history storage.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database path. Empty means ~/.kuramap/runs.db.
	// Supports ${VAR} syntax.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a KuramapConfig with sensible defaults.
func Default() *KuramapConfig {
	return &KuramapConfig{
		Engine: EngineConfig{
			Rows:             constants.DefaultRows,
			Cols:             constants.DefaultCols,
			Dim:              constants.DefaultFeatureDim,
			LearningRate:     constants.DefaultLearningRate,
			Radius:           constants.DefaultRadius,
			MinRadius:        constants.DefaultMinRadius,
			RadiusDecay:      constants.DefaultRadiusDecay,
			Epochs:           constants.DefaultEpochs,
			Tolerance:        constants.DefaultTolerance,
			Neighborhood:     lattice.Gaussian.String(),
			CouplingMode:     coupling.ModeNone.String(),
			CouplingStrength: constants.DefaultCouplingStrength,
			Dt:               constants.DefaultDt,
			NoiseStd:         constants.DefaultNoiseStd,
			TicksPerStep:     constants.DefaultTicksPerStep,
			CouplingRadius:   constants.DefaultCouplingRadius,
			FrequencyMean:    constants.DefaultFrequencyMean,
			FrequencyStd:     constants.DefaultFrequencyStd,
			FrequencyMin:     constants.DefaultFrequencyMin,
			FrequencyMax:     constants.DefaultFrequencyMax,
			FeedbackRate:     constants.DefaultFeedbackRate,
			FeedbackRadius:   constants.DefaultFeedbackRadius,
			AffinitySigma:    constants.DefaultAffinitySigma,
			Seed:             constants.DefaultSeed,
			Workers:          1,
		},
		Run: RunConfig{
			Samples:         constants.DefaultSamples,
			CoherenceRadius: constants.DefaultCoherenceRadius,
			Record:          true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.kuramap/config.yaml -> environment variables
func Load() (*KuramapConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".kuramap", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			return fileConfig, nil
		}
	}

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file, then applies
// environment variable overrides. Keys absent from the file keep their
// defaults.
func LoadFromFile(path string) (*KuramapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Run.DataPath = expandEnvVars(config.Run.DataPath)
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *KuramapConfig) Validate() error {
	if _, err := c.Engine.TrainingConfig(); err != nil {
		return err
	}

	if c.Run.Samples < 0 {
		return fmt.Errorf("samples must be non-negative, got %d", c.Run.Samples)
	}
	if c.Run.CoherenceRadius < 0 {
		return fmt.Errorf("coherence_radius must be non-negative, got %v", c.Run.CoherenceRadius)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	validBackends := map[string]bool{"": true, "sqlite": true, "memory": true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("invalid store backend: %s (valid: sqlite, memory)", c.Store.Backend)
	}

	return nil
}

// TrainingConfig parses and validates the engine settings.
func (e EngineConfig) TrainingConfig() (training.Config, error) {
	kind, err := lattice.ParseNeighborhoodKind(e.Neighborhood)
	if err != nil {
		return training.Config{}, err
	}
	mode, err := coupling.ParseMode(e.CouplingMode)
	if err != nil {
		return training.Config{}, err
	}

	cfg := training.Config{
		Rows:             e.Rows,
		Cols:             e.Cols,
		Dim:              e.Dim,
		LearningRate:     e.LearningRate,
		Radius:           e.Radius,
		MinRadius:        e.MinRadius,
		RadiusDecay:      e.RadiusDecay,
		Epochs:           e.Epochs,
		Tolerance:        e.Tolerance,
		Neighborhood:     kind,
		Mode:             mode,
		CouplingStrength: e.CouplingStrength,
		Dt:               e.Dt,
		NoiseStd:         e.NoiseStd,
		TicksPerStep:     e.TicksPerStep,
		CouplingRadius:   e.CouplingRadius,
		FrequencyMean:    e.FrequencyMean,
		FrequencyStd:     e.FrequencyStd,
		FrequencyMin:     e.FrequencyMin,
		FrequencyMax:     e.FrequencyMax,
		FeedbackRate:     e.FeedbackRate,
		FeedbackRadius:   e.FeedbackRadius,
		Dynamic:          e.Dynamic,
		AffinitySigma:    e.AffinitySigma,
		Seed:             e.Seed,
		Workers:          e.WorkerCount(),
	}
	if err := cfg.Validate(); err != nil {
		return training.Config{}, fmt.Errorf("invalid engine config: %w", err)
	}
	if cfg.Dynamic && cfg.Mode != coupling.ModeFeatureDriven {
		return training.Config{}, fmt.Errorf("dynamic coupling requires coupling_mode %s, got %s", coupling.ModeFeatureDriven, cfg.Mode)
	}
	return cfg, nil
}

// WorkerCount resolves the configured worker count for this host.
func (e EngineConfig) WorkerCount() int {
	return parallel.Resolve(e.Workers)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numeric values are errors rather than silently ignored.
func applyEnvOverrides(config *KuramapConfig) error {
	if v := os.Getenv("KURAMAP_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("KURAMAP_SEED: %w", err)
		}
		config.Engine.Seed = n
	}

	if v := os.Getenv("KURAMAP_WORKERS"); v == "auto" {
		config.Engine.Workers = parallel.Auto
	} else if v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KURAMAP_WORKERS: %w", err)
		}
		config.Engine.Workers = n
	}

	if v := os.Getenv("KURAMAP_COUPLING_MODE"); v != "" {
		config.Engine.CouplingMode = v
	}

	if v := os.Getenv("KURAMAP_NEIGHBORHOOD"); v != "" {
		config.Engine.Neighborhood = v
	}

	if v := os.Getenv("KURAMAP_LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("KURAMAP_DB_PATH"); v != "" {
		config.Store.Path = v
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// OpenStore opens the configured run-history store.
func (c *KuramapConfig) OpenStore() (store.RunStore, error) {
	return store.Open(c.Store.Backend, c.Store.Path)
}

// TraceDir returns the directory trace.jsonl is written to.
func (c *KuramapConfig) TraceDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	return store.GlobalKuramapPath()
}
