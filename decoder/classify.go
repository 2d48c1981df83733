// Package decoder picks the class HMM that best explains a symbol sequence
// and scores labelled test sets.
package decoder

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/internal/mathutil"
)

// Config holds classification parameters.
type Config struct {
	Mode    acoustic.ScoreMode `yaml:"mode"`
	Workers int                `yaml:"workers"` // sequences scored in parallel by ClassifyBatch
}

// DefaultConfig returns scaled scoring on one worker.
func DefaultConfig() Config {
	return Config{
		Mode:    acoustic.Scaled,
		Workers: 1,
	}
}

// Classify scores seq under every model and returns the arg-max. Ties resolve
// to the lowest model index.
func Classify(seq acoustic.Sequence, models []*acoustic.HMM, cfg Config) (*Result, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("decoder: no models")
	}
	res := &Result{Scores: make([]Score, len(models))}
	lps := make([]float64, len(models))
	for i, h := range models {
		lp, err := acoustic.Score(h, seq, cfg.Mode)
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", h.Label, err)
		}
		lps[i] = lp
		res.Scores[i] = Score{Label: h.Label, LogProb: lp}
		if i == 0 || lp > res.LogProb {
			res.Index = i
			res.LogProb = lp
		}
	}
	res.Label = models[res.Index].Label

	norm := mathutil.LogSumExp(lps)
	for i := range res.Scores {
		res.Scores[i].Posterior = math.Exp(lps[i] - norm)
	}
	return res, nil
}

// ClassifyBatch classifies every sequence. Results keep the input order.
func ClassifyBatch(ctx context.Context, seqs []acoustic.Sequence, models []*acoustic.HMM, cfg Config) ([]*Result, error) {
	out := make([]*Result, len(seqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Workers))
	for n, seq := range seqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := Classify(seq, models, cfg)
			if err != nil {
				return fmt.Errorf("sequence %d: %w", n, err)
			}
			out[n] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
