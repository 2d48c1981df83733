// Package vqdigit recognizes isolated spoken digits from precomputed
// acoustic feature vectors. Frames are quantized against a K-means codebook
// and each digit is modeled by a discrete HMM trained with Baum-Welch.
package vqdigit

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/corpus"
	"github.com/ieee0824/vqdigit/decoder"
	"github.com/ieee0824/vqdigit/feature"
	"github.com/ieee0824/vqdigit/vq"
)

// Recognizer classifies single utterances with a trained codebook and model.
type Recognizer struct {
	Codebook *vq.Codebook
	Model    *acoustic.Model
	FeatCfg  feature.Config
	DecCfg   decoder.Config
	MaxLen   int // truncate longer utterances; 0 keeps all
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithFeatureConfig sets the preprocessing applied before quantization.
func WithFeatureConfig(cfg feature.Config) Option {
	return func(r *Recognizer) {
		r.FeatCfg = cfg
	}
}

// WithDecoderConfig sets custom classification parameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(r *Recognizer) {
		r.DecCfg = cfg
	}
}

// WithMaxSequenceLength truncates utterances to n frames.
func WithMaxSequenceLength(n int) Option {
	return func(r *Recognizer) {
		r.MaxLen = n
	}
}

// NewRecognizer loads a codebook and model from files.
func NewRecognizer(codebookPath, modelPath string, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{
		FeatCfg: feature.DefaultConfig(),
		DecCfg:  decoder.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}

	cb, err := vq.LoadCodebookFile(codebookPath, r.FeatCfg.Dim)
	if err != nil {
		return nil, fmt.Errorf("load codebook: %w", err)
	}
	model, err := acoustic.LoadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	r.Codebook = cb
	r.Model = model
	if err := model.CheckAlphabet(cb.K()); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRecognizerFromModels creates a Recognizer from loaded components.
func NewRecognizerFromModels(cb *vq.Codebook, model *acoustic.Model, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{
		Codebook: cb,
		Model:    model,
		FeatCfg:  feature.DefaultConfig(),
		DecCfg:   decoder.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := model.CheckAlphabet(cb.K()); err != nil {
		return nil, err
	}
	if cb.Dim != r.FeatCfg.Dim {
		return nil, &vq.ErrDimensionMismatch{Expected: cb.Dim, Actual: r.FeatCfg.Dim, Index: -1}
	}
	return r, nil
}

// Quantize preprocesses frames and maps them to codebook symbols.
func (r *Recognizer) Quantize(frames [][]float64) (acoustic.Sequence, error) {
	return quantize(r.Codebook, frames, r.FeatCfg, r.MaxLen)
}

// RecognizeFrames classifies one utterance given its raw feature frames.
func (r *Recognizer) RecognizeFrames(frames [][]float64) (*decoder.Result, error) {
	seq, err := r.Quantize(frames)
	if err != nil {
		return nil, err
	}
	return decoder.Classify(seq, r.Model.HMMs, r.DecCfg)
}

// RecognizeFile classifies the utterance stored in a feature file.
func (r *Recognizer) RecognizeFile(path string) (*decoder.Result, error) {
	frames, err := feature.ReadVectorsFile(path, r.FeatCfg.InputDim(), 0)
	if err != nil {
		return nil, err
	}
	return r.RecognizeFrames(frames)
}

func toVectors(frames [][]float64) []vq.Vector {
	out := make([]vq.Vector, len(frames))
	for i, f := range frames {
		out[i] = f
	}
	return out
}

func quantize(cb *vq.Codebook, frames [][]float64, fc feature.Config, maxLen int) (acoustic.Sequence, error) {
	if len(frames) == 0 {
		return nil, acoustic.ErrEmptySequence
	}
	if maxLen > 0 && len(frames) > maxLen {
		frames = frames[:maxLen]
	}
	processed, err := feature.Process(frames, fc)
	if err != nil {
		return nil, err
	}
	syms, err := cb.Quantize(toVectors(processed))
	if err != nil {
		return nil, err
	}
	return acoustic.Sequence(syms), nil
}

// Pipeline runs the batch train-then-test workflow: codebook construction,
// quantization of every utterance, per-class training and evaluation.
type Pipeline struct {
	cfg    Config
	logger *Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger for progress reporting.
func WithLogger(l *Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline validates cfg and returns a pipeline for it.
func NewPipeline(cfg Config, opts ...PipelineOption) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, logger: NoopLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// LoadFeatures reads and preprocesses the frames of every utterance, capped
// at MaxVectors frames in total.
func (p *Pipeline) LoadFeatures(utts []corpus.Utterance) ([]vq.Vector, error) {
	var data []vq.Vector
	for _, u := range utts {
		limit := 0
		if p.cfg.MaxVectors > 0 {
			limit = p.cfg.MaxVectors - len(data)
			if limit <= 0 {
				break
			}
		}
		frames, err := feature.ReadVectorsFile(u.Path, p.cfg.Feature.InputDim(), 0)
		if err != nil {
			return nil, err
		}
		processed, err := feature.Process(frames, p.cfg.Feature)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", u.Path, err)
		}
		if limit > 0 && len(processed) > limit {
			processed = processed[:limit]
		}
		data = append(data, toVectors(processed)...)
	}
	return data, nil
}

// BuildCodebook trains a codebook on the frames of utts.
func (p *Pipeline) BuildCodebook(ctx context.Context, utts []corpus.Utterance) (*vq.Codebook, vq.Result, error) {
	data, err := p.LoadFeatures(utts)
	if err != nil {
		return nil, vq.Result{}, err
	}
	cb, res, err := vq.Build(ctx, data, p.cfg.Codebook, vq.WithLogger(p.logger.Logger))
	p.logger.LogCodebookBuilt(ctx, len(data), cb, res, err)
	if err != nil {
		return nil, res, err
	}
	return cb, res, nil
}

// Quantize converts every utterance to a symbol sequence and appends it to
// the store under its label and split, keeping the input order. Utterances
// that yield no frames are skipped. It returns the number written.
func (p *Pipeline) Quantize(ctx context.Context, cb *vq.Codebook, utts []corpus.Utterance, store corpus.Store, split corpus.Split) (int, error) {
	if cb.Dim != p.cfg.Feature.Dim {
		return 0, &vq.ErrDimensionMismatch{Expected: cb.Dim, Actual: p.cfg.Feature.Dim, Index: -1}
	}
	seqs := make([]acoustic.Sequence, len(utts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, p.cfg.Workers))
	for i, u := range utts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frames, err := feature.ReadVectorsFile(u.Path, p.cfg.Feature.InputDim(), 0)
			if err != nil {
				return err
			}
			seq, err := quantize(cb, frames, p.cfg.Feature, p.cfg.MaxSequenceLength)
			if errors.Is(err, acoustic.ErrEmptySequence) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", u.Path, err)
			}
			seqs[i] = seq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	written, skipped := 0, 0
	for i, u := range utts {
		if seqs[i] == nil {
			skipped++
			continue
		}
		if err := store.Append(u.Label, split, seqs[i]); err != nil {
			return written, err
		}
		written++
	}
	p.logger.LogQuantized(ctx, string(split), written, skipped)
	return written, nil
}

// Train fits one HMM per label on the training split of store.
func (p *Pipeline) Train(ctx context.Context, store corpus.Store) (*acoustic.Model, []acoustic.TrainResult, error) {
	corpora, err := store.LoadAll(p.cfg.Labels, corpus.Train, p.cfg.MaxSequenceLength)
	if err != nil {
		return nil, nil, err
	}
	model, err := acoustic.NewModel(p.cfg.Labels, p.cfg.HMM)
	if err != nil {
		return nil, nil, err
	}
	logger := p.logger.WithRun(model.ID)
	results, err := model.TrainAll(ctx, corpora, p.cfg.Training, p.cfg.Workers, acoustic.WithLogger(logger.Logger))
	if err != nil {
		logger.ErrorContext(ctx, "training failed", "error", err)
		return nil, nil, err
	}
	for i, l := range model.Labels {
		logger.LogClassTrained(ctx, l, len(corpora[l]), results[i], nil)
	}
	return model, results, nil
}

// Evaluate classifies the dev split of store and tallies accuracy.
func (p *Pipeline) Evaluate(ctx context.Context, model *acoustic.Model, store corpus.Store) (*decoder.Evaluation, error) {
	corpora, err := store.LoadAll(model.Labels, corpus.Dev, p.cfg.MaxSequenceLength)
	if err != nil {
		return nil, err
	}
	var samples []decoder.Sample
	for _, l := range model.Labels {
		for _, seq := range corpora[l] {
			samples = append(samples, decoder.Sample{Label: l, Seq: seq})
		}
	}
	ev, err := decoder.Evaluate(ctx, samples, model.HMMs, p.cfg.Decoder)
	if err != nil {
		return nil, err
	}
	p.logger.LogEvaluation(ctx, ev)
	return ev, nil
}

// RunResult collects the artifacts of a full run.
type RunResult struct {
	Codebook       *vq.Codebook
	CodebookResult vq.Result
	Model          *acoustic.Model
	TrainResults   []acoustic.TrainResult
	Evaluation     *decoder.Evaluation
}

// Run executes the whole workflow. The codebook is trained on the training
// utterances only; store is cleared for both splits before writing.
func (p *Pipeline) Run(ctx context.Context, train, dev []corpus.Utterance, store corpus.Store) (*RunResult, error) {
	res := &RunResult{}
	var err error
	res.Codebook, res.CodebookResult, err = p.BuildCodebook(ctx, train)
	if err != nil {
		return nil, fmt.Errorf("build codebook: %w", err)
	}

	for _, split := range []corpus.Split{corpus.Train, corpus.Dev} {
		if err := store.Reset(p.cfg.Labels, split); err != nil {
			return nil, err
		}
	}
	if _, err := p.Quantize(ctx, res.Codebook, train, store, corpus.Train); err != nil {
		return nil, fmt.Errorf("quantize train: %w", err)
	}
	if _, err := p.Quantize(ctx, res.Codebook, dev, store, corpus.Dev); err != nil {
		return nil, fmt.Errorf("quantize dev: %w", err)
	}

	res.Model, res.TrainResults, err = p.Train(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	res.Evaluation, err = p.Evaluate(ctx, res.Model, store)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return res, nil
}
