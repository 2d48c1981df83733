package feature

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Config selects the preprocessing applied to each utterance.
type Config struct {
	Dim          int  `yaml:"dim"`           // dimension handed to the quantizer
	CMN          bool `yaml:"cmn"`           // subtract the utterance mean
	AppendDeltas bool `yaml:"append_deltas"` // input is static coefficients; append Δ and ΔΔ
	DeltaWindow  int  `yaml:"delta_window"`
}

// DefaultConfig matches 39-dimensional MFCC+Δ+ΔΔ input used as-is.
func DefaultConfig() Config {
	return Config{
		Dim:         39,
		DeltaWindow: 2,
	}
}

// InputDim returns the number of values per frame expected in feature files.
func (c Config) InputDim() int {
	if c.AppendDeltas {
		return c.Dim / 3
	}
	return c.Dim
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("feature: dimension must be positive, got %d", c.Dim)
	}
	if c.AppendDeltas {
		if c.Dim%3 != 0 {
			return fmt.Errorf("feature: dimension %d is not divisible by 3 with deltas enabled", c.Dim)
		}
		if c.DeltaWindow <= 0 {
			return fmt.Errorf("feature: delta window must be positive, got %d", c.DeltaWindow)
		}
	}
	return nil
}

// ApplyCMN subtracts the utterance-level mean from each feature dimension
// (cepstral mean normalization), removing stationary channel bias.
func ApplyCMN(frames [][]float64) {
	if len(frames) == 0 {
		return
	}
	mean := make([]float64, len(frames[0]))
	for _, f := range frames {
		floats.Add(mean, f)
	}
	floats.Scale(1/float64(len(frames)), mean)
	for _, f := range frames {
		floats.Sub(f, mean)
	}
}

// Process applies the configured preprocessing and returns frames of
// cfg.Dim values. The input slice may be modified in place.
func Process(frames [][]float64, cfg Config) ([][]float64, error) {
	if len(frames) == 0 {
		return frames, nil
	}
	in := cfg.InputDim()
	for t, f := range frames {
		if len(f) != in {
			return nil, fmt.Errorf("feature: frame %d has %d values, want %d", t, len(f), in)
		}
	}
	if cfg.CMN {
		ApplyCMN(frames)
	}
	if cfg.AppendDeltas {
		frames = AppendDeltas(frames, cfg.DeltaWindow)
	}
	return frames, nil
}
