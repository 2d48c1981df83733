package vqdigit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/decoder"
	"github.com/ieee0824/vqdigit/feature"
	"github.com/ieee0824/vqdigit/vq"
)

// Config is the complete configuration of a recognition run.
type Config struct {
	Labels            []string                `yaml:"labels"`
	MaxSequenceLength int                     `yaml:"max_sequence_length"` // longer utterances are truncated; 0 keeps all
	MaxVectors        int                     `yaml:"max_vectors"`         // codebook training vectors; 0 uses every frame
	Workers           int                     `yaml:"workers"`             // utterances quantized and classes trained in parallel
	Feature           feature.Config          `yaml:"feature"`
	Codebook          vq.Config               `yaml:"codebook"`
	HMM               acoustic.Config         `yaml:"hmm"`
	Training          acoustic.TrainingConfig `yaml:"training"`
	Decoder           decoder.Config          `yaml:"decoder"`
	Log               LogConfig               `yaml:"log"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the configuration for the four-digit task.
func DefaultConfig() Config {
	return Config{
		Labels:            []string{"2", "3", "4", "5"},
		MaxSequenceLength: 500,
		MaxVectors:        10000,
		Workers:           1,
		Feature:           feature.DefaultConfig(),
		Codebook:          vq.DefaultConfig(),
		HMM:               acoustic.DefaultConfig(),
		Training:          acoustic.DefaultTrainingConfig(),
		Decoder:           decoder.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetWorkers applies n to every parallel stage.
func (c *Config) SetWorkers(n int) {
	c.Workers = n
	c.Codebook.Workers = n
	c.Training.Workers = n
	c.Decoder.Workers = n
}

// Validate checks the configuration and its sections.
func (c Config) Validate() error {
	if len(c.Labels) == 0 {
		return errors.New("config: no labels")
	}
	seen := make(map[string]bool, len(c.Labels))
	for _, l := range c.Labels {
		if l == "" {
			return errors.New("config: empty label")
		}
		if seen[l] {
			return fmt.Errorf("config: duplicate label %q", l)
		}
		seen[l] = true
	}
	if c.MaxSequenceLength < 0 {
		return fmt.Errorf("config: max sequence length must be non-negative, got %d", c.MaxSequenceLength)
	}
	if c.MaxVectors < 0 {
		return fmt.Errorf("config: max vectors must be non-negative, got %d", c.MaxVectors)
	}
	if err := c.Feature.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Codebook.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.HMM.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.HMM.NumSymbols != c.Codebook.K {
		return fmt.Errorf("config: %w", &acoustic.ErrAlphabetMismatch{Model: c.HMM.NumSymbols, Codebook: c.Codebook.K})
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// LoadConfig reads a YAML configuration. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads path, or returns the defaults when path is empty.
func LoadConfigOrDefault(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ParseLevel maps a level name to a slog level. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
