package vqdigit

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/corpus"
	"github.com/ieee0824/vqdigit/feature"
	"github.com/ieee0824/vqdigit/vq"
)

var centers = map[string][]float64{
	"2": {0, 0},
	"3": {10, 10},
}

// writeUtterances writes n feature files per label into dir. Frames of
// label l are jittered around centers[l].
func writeUtterances(t *testing.T, dir string, n int, rng *rand.Rand) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, label := range []string{"2", "3"} {
		for i := 0; i < n; i++ {
			frames := make([][]float64, 8+rng.Intn(8))
			for f := range frames {
				c := centers[label]
				frames[f] = []float64{c[0] + rng.Float64() - 0.5, c[1] + rng.Float64() - 0.5}
			}
			var buf bytes.Buffer
			require.NoError(t, feature.WriteVectors(&buf, frames))
			name := fmt.Sprintf("spk_%s_%c.mfcc", label, 'a'+i)
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
		}
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Labels = []string{"2", "3"}
	cfg.Feature = feature.Config{Dim: 2}
	cfg.Codebook = vq.Config{K: 2, MaxIterations: 50, Threshold: 1e-9, Workers: 2}
	cfg.HMM = acoustic.Config{NumStates: 2, NumSymbols: 2, Topology: acoustic.LeftToRight, SelfLoop: 0.6}
	cfg.Training.Iterations = 10
	cfg.Workers = 2
	return cfg
}

func TestPipelineRun(t *testing.T) {
	root := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	writeUtterances(t, filepath.Join(root, "train"), 6, rng)
	writeUtterances(t, filepath.Join(root, "dev"), 3, rng)
	// Unlabelled and hidden files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "train", "noise.mfcc"), []byte("1 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "train", ".x_2.mfcc"), []byte("1 1"), 0o644))

	cfg := smallConfig()
	p, err := NewPipeline(cfg)
	require.NoError(t, err)

	train, err := corpus.Scan(filepath.Join(root, "train"), cfg.Labels)
	require.NoError(t, err)
	require.Len(t, train, 12)
	dev, err := corpus.Scan(filepath.Join(root, "dev"), cfg.Labels)
	require.NoError(t, err)

	store := corpus.Store{Root: filepath.Join(root, "hmm")}
	res, err := p.Run(context.Background(), train, dev, store)
	require.NoError(t, err)

	assert.True(t, res.CodebookResult.Converged)
	assert.Equal(t, 2, res.Codebook.K())
	require.Len(t, res.TrainResults, 2)
	assert.Equal(t, 6, res.Evaluation.Total)
	assert.Equal(t, 1.0, res.Evaluation.Accuracy())

	seqs, err := store.Load("2", corpus.Train, 0)
	require.NoError(t, err)
	assert.Len(t, seqs, 6)

	// A second run starts from a clean store.
	res2, err := p.Run(context.Background(), train, dev, store)
	require.NoError(t, err)
	assert.Equal(t, 6, res2.Evaluation.Total)
}

func TestRecognizerFromFiles(t *testing.T) {
	root := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	writeUtterances(t, filepath.Join(root, "train"), 5, rng)

	cfg := smallConfig()
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	train, err := corpus.Scan(filepath.Join(root, "train"), cfg.Labels)
	require.NoError(t, err)
	store := corpus.Store{Root: filepath.Join(root, "hmm")}
	res, err := p.Run(context.Background(), train, train, store)
	require.NoError(t, err)

	cbPath := filepath.Join(root, "codebook.txt")
	modelPath := filepath.Join(root, "model.gob.zst")
	require.NoError(t, vq.SaveCodebookFile(cbPath, res.Codebook))
	require.NoError(t, res.Model.SaveFile(modelPath))

	r, err := NewRecognizer(cbPath, modelPath, WithFeatureConfig(cfg.Feature), WithMaxSequenceLength(100))
	require.NoError(t, err)
	for _, u := range train {
		got, err := r.RecognizeFile(u.Path)
		require.NoError(t, err)
		assert.Equal(t, u.Label, got.Label, u.Path)
	}

	got, err := r.RecognizeFrames([][]float64{{10, 10}, {9.8, 10.1}})
	require.NoError(t, err)
	assert.Equal(t, "3", got.Label)

	_, err = r.RecognizeFrames(nil)
	assert.ErrorIs(t, err, acoustic.ErrEmptySequence)
	_, err = r.RecognizeFrames([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}

func TestNewRecognizerFromModelsChecksShapes(t *testing.T) {
	cb, err := vq.NewCodebookFromCentroids([]vq.Vector{{0, 0}, {1, 1}})
	require.NoError(t, err)

	model, err := acoustic.NewModel([]string{"2"}, acoustic.Config{NumStates: 1, NumSymbols: 3, Topology: acoustic.LeftToRight, SelfLoop: 1})
	require.NoError(t, err)
	_, err = NewRecognizerFromModels(cb, model, WithFeatureConfig(feature.Config{Dim: 2}))
	var mm *acoustic.ErrAlphabetMismatch
	assert.ErrorAs(t, err, &mm)

	model, err = acoustic.NewModel([]string{"2"}, acoustic.Config{NumStates: 1, NumSymbols: 2, Topology: acoustic.LeftToRight, SelfLoop: 1})
	require.NoError(t, err)
	_, err = NewRecognizerFromModels(cb, model)
	var dm *vq.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)

	r, err := NewRecognizerFromModels(cb, model, WithFeatureConfig(feature.Config{Dim: 2}))
	require.NoError(t, err)
	seq, err := r.Quantize([][]float64{{0.1, 0}, {0.9, 1}})
	require.NoError(t, err)
	assert.Equal(t, acoustic.Sequence{0, 1}, seq)
}

func TestPipelineLoadFeaturesCap(t *testing.T) {
	root := t.TempDir()
	writeUtterances(t, root, 3, rand.New(rand.NewSource(3)))
	cfg := smallConfig()
	cfg.MaxVectors = 20
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	utts, err := corpus.Scan(root, cfg.Labels)
	require.NoError(t, err)

	data, err := p.LoadFeatures(utts)
	require.NoError(t, err)
	assert.Len(t, data, 20)
}

func TestPipelineTrainMissingClass(t *testing.T) {
	cfg := smallConfig()
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	store := corpus.Store{Root: t.TempDir()}
	require.NoError(t, store.Append("2", corpus.Train, acoustic.Sequence{0, 1}))

	_, _, err = p.Train(context.Background(), store)
	assert.ErrorIs(t, err, acoustic.ErrInsufficientData)
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Labels = nil
	_, err := NewPipeline(cfg)
	assert.Error(t, err)
}
