package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/vqdigit"
	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/feature"
	"github.com/ieee0824/vqdigit/vq"
)

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()

	resetFlags(rootCmd)
	return outBuf.String(), errBuf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
			return
		}
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeFeatures writes n feature files per label into dir, jittered around
// a per-label center.
func writeFeatures(t *testing.T, dir string, n int, rng *rand.Rand) {
	t.Helper()
	centers := map[string][]float64{"2": {0, 0}, "3": {10, 10}}
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

// writeConfig saves a two-label configuration for 2-dimensional features.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := vqdigit.DefaultConfig()
	cfg.Labels = []string{"2", "3"}
	cfg.Feature = feature.Config{Dim: 2}
	cfg.Codebook = vq.Config{K: 2, MaxIterations: 50, Threshold: 1e-9, Workers: 1}
	cfg.HMM = acoustic.Config{NumStates: 2, NumSymbols: 2, Topology: acoustic.LeftToRight, SelfLoop: 0.6}
	cfg.Training.Iterations = 10
	cfg.Log.Level = "error"
	path := filepath.Join(dir, "vqdigit.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func setupData(t *testing.T) (root, config string) {
	t.Helper()
	root = t.TempDir()
	rng := rand.New(rand.NewSource(1))
	writeFeatures(t, filepath.Join(root, "train"), 6, rng)
	writeFeatures(t, filepath.Join(root, "dev"), 3, rng)
	return root, writeConfig(t, root)
}

func TestRunJSON(t *testing.T) {
	root, config := setupData(t)
	cbPath := filepath.Join(root, "codebook.txt")
	modelPath := filepath.Join(root, "model.gob.zst")

	stdout, _, err := runCLI(t, "run", "-c", config, "-j", "2", "-o", "json",
		"--train", filepath.Join(root, "train"),
		"--dev", filepath.Join(root, "dev"),
		"--work", filepath.Join(root, "hmm"),
		"--save-codebook", cbPath,
		"--save-model", modelPath)
	require.NoError(t, err)

	var r evalReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	assert.NotEmpty(t, r.ModelID)
	assert.Equal(t, 6, r.Total)
	assert.Equal(t, 6, r.Correct)
	assert.Equal(t, [][]int{{3, 0}, {0, 3}}, r.Confusion)
	require.Len(t, r.Classes, 2)
	assert.Equal(t, "2", r.Classes[0].Label)

	assert.FileExists(t, cbPath)
	assert.FileExists(t, modelPath)
	assert.FileExists(t, filepath.Join(root, "hmm", "3", "dev.seq"))

	stdout, _, err = runCLI(t, "recognize", "-c", config, "-o", "yaml",
		"--codebook", cbPath, "--model", modelPath,
		filepath.Join(root, "dev", "spk_2_a.mfcc"),
		filepath.Join(root, "dev", "spk_3_b.mfcc"))
	require.NoError(t, err)
	var recs []recognition
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[0].Label)
	assert.Equal(t, "3", recs[1].Label)
	assert.Greater(t, recs[0].Margin, 0.0)
}

func TestStepByStep(t *testing.T) {
	root, config := setupData(t)
	cbPath := filepath.Join(root, "cb.txt")
	modelPath := filepath.Join(root, "model.gob")
	seqDir := filepath.Join(root, "hmm")

	stdout, _, err := runCLI(t, "codebook", "-c", config, "--train", filepath.Join(root, "train"), "--out", cbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 codewords")

	stdout, _, err = runCLI(t, "quantize", "-c", config, "--codebook", cbPath,
		"--train", filepath.Join(root, "train"), "--dev", filepath.Join(root, "dev"), "--out", seqDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "train: 12 sequences")
	assert.Contains(t, stdout, "dev: 6 sequences")

	stdout, _, err = runCLI(t, "train", "-c", config, "--seq", seqDir, "--out", modelPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, modelPath)

	stdout, _, err = runCLI(t, "eval", "-c", config, "--seq", seqDir, "--model", modelPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "accuracy 6/6")
}

func TestManifestInput(t *testing.T) {
	root, config := setupData(t)
	manifest := "# path\tlabel\ntrain/spk_2_a.mfcc\t2\ntrain/spk_3_a.mfcc\t3\n"
	path := filepath.Join(root, "train.tsv")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	_, _, err := runCLI(t, "codebook", "-c", config, "--train", path, "--out", filepath.Join(root, "cb.txt"))
	assert.NoError(t, err)
}

func TestCommandErrors(t *testing.T) {
	root, config := setupData(t)

	_, _, err := runCLI(t, "eval", "-c", config)
	assert.ErrorContains(t, err, "--model")

	_, _, err = runCLI(t, "codebook", "-c", config)
	assert.ErrorContains(t, err, "no feature files")

	_, _, err = runCLI(t, "run", "-c", config, "--train", filepath.Join(root, "train"))
	assert.ErrorContains(t, err, "--dev")

	_, _, err = runCLI(t, "run", "-c", config, "-o", "xml",
		"--train", filepath.Join(root, "train"),
		"--dev", filepath.Join(root, "dev"),
		"--work", filepath.Join(root, "hmm"))
	assert.ErrorContains(t, err, "unsupported output format")

	_, _, err = runCLI(t, "recognize", "-c", config)
	assert.Error(t, err)

	// K=3 against a two-symbol HMM fails validation unless --k also moves
	// the alphabet, which it does.
	_, _, err = runCLI(t, "codebook", "-c", config, "--k", "3",
		"--train", filepath.Join(root, "train"), "--out", filepath.Join(root, "cb3.txt"))
	assert.NoError(t, err)
}

func TestRenderEval(t *testing.T) {
	r := evalReport{
		ModelID:   "m1",
		Correct:   5,
		Total:     6,
		Accuracy:  5.0 / 6,
		Classes:   []classReport{{Label: "2", Correct: 3, Total: 3, Accuracy: 1}, {Label: "3", Correct: 2, Total: 3, Accuracy: 2.0 / 3}},
		Confusion: [][]int{{3, 0}, {1, 2}},
	}
	out := r.renderEval()
	assert.Contains(t, out, "model m1")
	assert.Contains(t, out, "accuracy 5/6 = 83.33%")
	assert.Contains(t, out, "66.7%")
	// header row plus one row per class
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 1+3+1)
}
