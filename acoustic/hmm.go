package acoustic

import (
	"fmt"

	"github.com/ieee0824/vqdigit/internal/mathutil"
)

// Topology selects the initial transition structure of an HMM.
type Topology string

const (
	// LeftToRight starts in state 0 and allows only a self-loop or a move to
	// the next state. The last state is absorbing.
	LeftToRight Topology = "left-to-right"

	// Ergodic allows every transition and starts uniformly. The self-loop
	// probability is shared out evenly over the other states.
	Ergodic Topology = "ergodic"
)

// StochasticTolerance bounds the row-sum error accepted for a probability row.
const StochasticTolerance = 1e-9

// Sequence is an utterance as codebook symbols.
type Sequence []int

// Config fixes the dimensions and initial parameters of a class HMM.
type Config struct {
	NumStates    int      `yaml:"states"`
	NumSymbols   int      `yaml:"symbols"`
	Topology     Topology `yaml:"topology"`
	SelfLoop     float64  `yaml:"self_loop"`
	EmissionBias float64  `yaml:"emission_bias"` // 0 keeps emissions uniform
}

// DefaultConfig returns a 5-state left-to-right model over 32 symbols.
func DefaultConfig() Config {
	return Config{
		NumStates:  5,
		NumSymbols: 32,
		Topology:   LeftToRight,
		SelfLoop:   0.6,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.NumStates <= 0 {
		return fmt.Errorf("acoustic: state count must be positive, got %d", c.NumStates)
	}
	if c.NumSymbols <= 0 {
		return fmt.Errorf("acoustic: symbol count must be positive, got %d", c.NumSymbols)
	}
	switch c.Topology {
	case LeftToRight, Ergodic:
	default:
		return fmt.Errorf("acoustic: unknown topology %q", c.Topology)
	}
	if c.SelfLoop <= 0 || c.SelfLoop > 1 {
		return fmt.Errorf("acoustic: self-loop probability must be in (0,1], got %g", c.SelfLoop)
	}
	if c.EmissionBias < 0 {
		return fmt.Errorf("acoustic: emission bias must be non-negative, got %g", c.EmissionBias)
	}
	return nil
}

// HMM is a discrete-observation hidden Markov model for one class.
type HMM struct {
	Label      string
	NumStates  int
	NumSymbols int
	A          mathutil.Mat // [NumStates][NumStates] transition probabilities
	B          mathutil.Mat // [NumStates][NumSymbols] emission probabilities
	Pi         mathutil.Vec // [NumStates] initial distribution
}

// NewHMM creates a model with the deterministic initial parameters selected
// by cfg.
func NewHMM(label string, cfg Config) (*HMM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	S, K := cfg.NumStates, cfg.NumSymbols
	h := &HMM{
		Label:      label,
		NumStates:  S,
		NumSymbols: K,
		A:          mathutil.NewMat(S, S),
		B:          mathutil.NewMatFill(S, K, 1/float64(K)),
		Pi:         mathutil.NewVec(S),
	}

	switch cfg.Topology {
	case LeftToRight:
		h.Pi[0] = 1
		for i := 0; i < S-1; i++ {
			h.A[i][i] = cfg.SelfLoop
			h.A[i][i+1] = 1 - cfg.SelfLoop
		}
		h.A[S-1][S-1] = 1
	case Ergodic:
		mathutil.FillVec(h.Pi, 1/float64(S))
		if S == 1 {
			h.A[0][0] = 1
			break
		}
		other := (1 - cfg.SelfLoop) / float64(S-1)
		for i := range h.A {
			mathutil.FillVec(h.A[i], other)
			h.A[i][i] = cfg.SelfLoop
		}
	}

	// State i favors the i-th contiguous band of symbols. Uniform emissions
	// are a fixed point of re-estimation when states share an occupancy profile.
	if cfg.EmissionBias > 0 {
		for k := 0; k < K; k++ {
			band := k * S / K
			h.B[band][k] *= 1 + cfg.EmissionBias
		}
		for i := range h.B {
			mathutil.Normalize(h.B[i], 0)
		}
	}
	return h, nil
}

// NewHMMWithParams creates a model from explicit parameters. The tables are
// copied and must be stochastic.
func NewHMMWithParams(label string, pi []float64, a, b [][]float64) (*HMM, error) {
	S := len(pi)
	if S == 0 || len(a) != S || len(b) != S {
		return nil, fmt.Errorf("acoustic: inconsistent state count: pi %d, A %d, B %d", len(pi), len(a), len(b))
	}
	K := len(b[0])
	h := &HMM{
		Label:      label,
		NumStates:  S,
		NumSymbols: K,
		A:          mathutil.NewMat(S, S),
		B:          mathutil.NewMat(S, K),
		Pi:         append(mathutil.Vec(nil), pi...),
	}
	for i := 0; i < S; i++ {
		if len(a[i]) != S || len(b[i]) != K {
			return nil, fmt.Errorf("acoustic: row %d has wrong width", i)
		}
		copy(h.A[i], a[i])
		copy(h.B[i], b[i])
	}
	if err := h.CheckStochastic(1e-6); err != nil {
		return nil, err
	}
	return h, nil
}

// Clone returns a deep copy of h.
func (h *HMM) Clone() *HMM {
	return &HMM{
		Label:      h.Label,
		NumStates:  h.NumStates,
		NumSymbols: h.NumSymbols,
		A:          mathutil.CloneMat(h.A),
		B:          mathutil.CloneMat(h.B),
		Pi:         append(mathutil.Vec(nil), h.Pi...),
	}
}

// CheckStochastic verifies that Pi and every row of A and B are probability
// distributions within tol.
func (h *HMM) CheckStochastic(tol float64) error {
	if !mathutil.IsStochastic(h.Pi, tol) {
		return fmt.Errorf("acoustic: %s: initial distribution is not stochastic: %v", h.Label, h.Pi)
	}
	for i := range h.A {
		if !mathutil.IsStochastic(h.A[i], tol) {
			return fmt.Errorf("acoustic: %s: transition row %d is not stochastic", h.Label, i)
		}
	}
	for i := range h.B {
		if !mathutil.IsStochastic(h.B[i], tol) {
			return fmt.Errorf("acoustic: %s: emission row %d is not stochastic", h.Label, i)
		}
	}
	return nil
}

// ValidateSequence checks that seq is non-empty and every symbol is inside
// the model alphabet.
func (h *HMM) ValidateSequence(seq Sequence) error {
	if len(seq) == 0 {
		return ErrEmptySequence
	}
	for t, o := range seq {
		if o < 0 || o >= h.NumSymbols {
			return &ErrSymbolOutOfRange{Symbol: o, Position: t, NumSymbols: h.NumSymbols}
		}
	}
	return nil
}
