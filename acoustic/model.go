package acoustic

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// modelVersion is bumped whenever the serialized layout changes.
const modelVersion = 1

// Model is an ordered set of class HMMs sharing one symbol alphabet.
type Model struct {
	ID     string // training run ID
	Labels []string
	HMMs   []*HMM // HMMs[i] models Labels[i]
	Config Config
}

// NewModel creates one freshly initialized HMM per label.
func NewModel(labels []string, cfg Config) (*Model, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no class labels", ErrInsufficientData)
	}
	seen := make(map[string]bool, len(labels))
	m := &Model{
		ID:     uuid.New().String(),
		Labels: append([]string(nil), labels...),
		HMMs:   make([]*HMM, len(labels)),
		Config: cfg,
	}
	for i, l := range labels {
		if seen[l] {
			return nil, fmt.Errorf("acoustic: duplicate label %q", l)
		}
		seen[l] = true
		h, err := NewHMM(l, cfg)
		if err != nil {
			return nil, err
		}
		m.HMMs[i] = h
	}
	return m, nil
}

// NumSymbols returns the alphabet size shared by every class HMM.
func (m *Model) NumSymbols() int {
	return m.Config.NumSymbols
}

// Lookup returns the HMM for label.
func (m *Model) Lookup(label string) (*HMM, bool) {
	for i, l := range m.Labels {
		if l == label {
			return m.HMMs[i], true
		}
	}
	return nil, false
}

// CheckAlphabet verifies that the model was built for a codebook of k
// codewords.
func (m *Model) CheckAlphabet(k int) error {
	if m.NumSymbols() != k {
		return &ErrAlphabetMismatch{Model: m.NumSymbols(), Codebook: k}
	}
	return nil
}

// TrainAll trains every class HMM on its own corpus. Classes run on up to
// workers goroutines; each class is independent, so the outcome does not
// depend on the worker count. Results are returned in label order.
func (m *Model) TrainAll(ctx context.Context, corpora map[string][]Sequence, cfg TrainingConfig, workers int, opts ...TrainOption) ([]TrainResult, error) {
	for _, l := range m.Labels {
		if len(corpora[l]) == 0 {
			return nil, fmt.Errorf("%w: no training sequences for %q", ErrInsufficientData, l)
		}
	}
	results := make([]TrainResult, len(m.Labels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i, l := range m.Labels {
		h := m.HMMs[i]
		g.Go(func() error {
			res, err := Train(gctx, h, corpora[l], cfg, opts...)
			if err != nil {
				return fmt.Errorf("train %q: %w", l, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type serializedModel struct {
	Version int
	ID      string
	Config  Config
	HMMs    []serializedHMM
}

type serializedHMM struct {
	Label string
	Pi    []float64
	A     [][]float64
	B     [][]float64
}

// Save serializes the model to a writer using gob encoding.
func (m *Model) Save(w io.Writer) error {
	sm := serializedModel{
		Version: modelVersion,
		ID:      m.ID,
		Config:  m.Config,
		HMMs:    make([]serializedHMM, len(m.HMMs)),
	}
	for i, h := range m.HMMs {
		sm.HMMs[i] = serializedHMM{Label: m.Labels[i], Pi: h.Pi, A: h.A, B: h.B}
	}
	return gob.NewEncoder(w).Encode(sm)
}

// Load deserializes a model from a reader and checks that every table is a
// probability distribution.
func Load(r io.Reader) (*Model, error) {
	var sm serializedModel
	if err := gob.NewDecoder(r).Decode(&sm); err != nil {
		return nil, err
	}
	if sm.Version != modelVersion {
		return nil, fmt.Errorf("acoustic: unsupported model version %d", sm.Version)
	}
	m := &Model{
		ID:     sm.ID,
		Labels: make([]string, len(sm.HMMs)),
		HMMs:   make([]*HMM, len(sm.HMMs)),
		Config: sm.Config,
	}
	for i, sh := range sm.HMMs {
		h, err := NewHMMWithParams(sh.Label, sh.Pi, sh.A, sh.B)
		if err != nil {
			return nil, err
		}
		if h.NumStates != sm.Config.NumStates || h.NumSymbols != sm.Config.NumSymbols {
			return nil, fmt.Errorf("acoustic: %s: shape %dx%d does not match config %dx%d",
				sh.Label, h.NumStates, h.NumSymbols, sm.Config.NumStates, sm.Config.NumSymbols)
		}
		m.Labels[i] = sh.Label
		m.HMMs[i] = h
	}
	return m, nil
}

// compressed reports whether path selects zstd framing.
func compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// SaveFile writes the model to path, zstd-compressed when path ends in ".zst".
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !compressed(path) {
		if err := m.Save(f); err != nil {
			return err
		}
		return f.Close()
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := m.Save(zw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

// LoadFile reads a model written by SaveFile.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed(path) {
		return Load(f)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return Load(zr)
}
