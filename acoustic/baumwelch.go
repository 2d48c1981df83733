package acoustic

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/vqdigit/internal/mathutil"
)

// Policy selects when parameters are re-estimated.
type Policy string

const (
	// Batch gathers statistics over the whole corpus and re-estimates once
	// per iteration. This is the EM update and never lowers the corpus
	// likelihood beyond rounding.
	Batch Policy = "batch"

	// Incremental re-estimates after every sequence. It is cheaper on memory
	// but only approximates EM.
	Incremental Policy = "incremental"
)

// TrainingConfig holds Baum-Welch training parameters.
type TrainingConfig struct {
	Iterations        int     `yaml:"iterations"`
	Policy            Policy  `yaml:"policy"`
	Epsilon           float64 `yaml:"epsilon"`            // smoothing floor for normalizers and emissions
	ConvergenceThresh float64 `yaml:"convergence_thresh"` // stop early on a smaller log-likelihood gain; 0 disables
	Workers           int     `yaml:"workers"`            // parallel E-step workers for Batch
}

// DefaultTrainingConfig returns the training parameters used for digit models.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Iterations: 25,
		Policy:     Batch,
		Epsilon:    1e-6,
		Workers:    1,
	}
}

// Validate checks the configuration.
func (c TrainingConfig) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("acoustic: iterations must be positive, got %d", c.Iterations)
	}
	switch c.Policy {
	case Batch, Incremental:
	default:
		return fmt.Errorf("acoustic: unknown training policy %q", c.Policy)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("acoustic: epsilon must be positive, got %g", c.Epsilon)
	}
	if c.ConvergenceThresh < 0 {
		return fmt.Errorf("acoustic: convergence threshold must be non-negative, got %g", c.ConvergenceThresh)
	}
	return nil
}

// TrainResult reports the progress of a training run.
type TrainResult struct {
	Iterations int
	// LogLikelihoods[i] is the corpus log-likelihood seen during the E-step
	// of iteration i, i.e. under the parameters before that update.
	LogLikelihoods     []float64
	FinalLogLikelihood float64
	Converged          bool
}

// accumulator holds expected counts gathered from a set of sequences.
type accumulator struct {
	pi       mathutil.Vec // Σ gamma_0
	transNum mathutil.Mat // Σ xi_t[i][j]
	transDen mathutil.Vec // Σ_{t<T-1} gamma_t[i]
	emitNum  mathutil.Mat // Σ_{t: O_t=k} gamma_t[i]
	emitDen  mathutil.Vec // Σ_t gamma_t[i]
	numSeqs  int
	logLik   float64
}

func newAccumulator(S, K int) *accumulator {
	return &accumulator{
		pi:       mathutil.NewVec(S),
		transNum: mathutil.NewMat(S, S),
		transDen: mathutil.NewVec(S),
		emitNum:  mathutil.NewMat(S, K),
		emitDen:  mathutil.NewVec(S),
	}
}

func (a *accumulator) reset() {
	mathutil.FillVec(a.pi, 0)
	mathutil.FillMat(a.transNum, 0)
	mathutil.FillVec(a.transDen, 0)
	mathutil.FillMat(a.emitNum, 0)
	mathutil.FillVec(a.emitDen, 0)
	a.numSeqs = 0
	a.logLik = 0
}

func (a *accumulator) merge(o *accumulator) {
	floats.Add(a.pi, o.pi)
	mathutil.AddMat(a.transNum, o.transNum)
	floats.Add(a.transDen, o.transDen)
	mathutil.AddMat(a.emitNum, o.emitNum)
	floats.Add(a.emitDen, o.emitDen)
	a.numSeqs += o.numSeqs
	a.logLik += o.logLik
}

// accumulate runs forward-backward on one sequence and adds its occupancy
// statistics.
func (a *accumulator) accumulate(h *HMM, seq Sequence, ws *workspace, eps float64) {
	T := len(seq)
	S := h.NumStates
	alpha, beta, gamma, xi := ws.alpha, ws.beta, ws.gamma, ws.xi

	ll := forwardScaled(h, seq, alpha, ws.scale)
	backwardScaled(h, seq, ws.scale, beta)
	a.logLik += ll
	a.numSeqs++

	// Transition occupancy. Length-1 sequences skip this loop entirely.
	for t := 0; t < T-1; t++ {
		next := seq[t+1]
		at, bn := alpha[t], beta[t+1]
		denom := 0.0
		for i := 0; i < S; i++ {
			for j := 0; j < S; j++ {
				x := at[i] * h.A[i][j] * h.B[j][next] * bn[j]
				xi[i][j] = x
				denom += x
			}
		}
		inv := 1 / (denom + eps)
		for i := 0; i < S; i++ {
			g := 0.0
			for j := 0; j < S; j++ {
				x := xi[i][j] * inv
				a.transNum[i][j] += x
				g += x
			}
			gamma[t][i] = g
			a.transDen[i] += g
		}
	}

	// Terminal occupancy has no outgoing transition.
	last := T - 1
	denom := 0.0
	for i := 0; i < S; i++ {
		denom += alpha[last][i] * beta[last][i]
	}
	inv := 1 / (denom + eps)
	for i := 0; i < S; i++ {
		gamma[last][i] = alpha[last][i] * beta[last][i] * inv
	}

	floats.Add(a.pi, gamma[0])
	for t := 0; t < T; t++ {
		o := seq[t]
		for i := 0; i < S; i++ {
			g := gamma[t][i]
			a.emitNum[i][o] += g
			a.emitDen[i] += g
		}
	}
}

// reestimate replaces the parameters of h with the M-step estimate. Rows whose
// occupancy is below eps keep their current values.
func (a *accumulator) reestimate(h *HMM, eps float64) {
	if a.numSeqs == 0 {
		return
	}
	S, K := h.NumStates, h.NumSymbols

	pi := make(mathutil.Vec, S)
	floats.ScaleTo(pi, 1/float64(a.numSeqs), a.pi)
	if mathutil.Normalize(pi, eps) {
		copy(h.Pi, pi)
	}

	row := make(mathutil.Vec, S)
	for i := 0; i < S; i++ {
		den := a.transDen[i]
		if den < eps {
			continue
		}
		floats.ScaleTo(row, 1/(den+eps), a.transNum[i])
		if mathutil.Normalize(row, 0) {
			copy(h.A[i], row)
		}
	}

	emit := make(mathutil.Vec, K)
	kEps := float64(K) * eps
	for i := 0; i < S; i++ {
		den := a.emitDen[i]
		if den < eps {
			continue
		}
		for k := 0; k < K; k++ {
			emit[k] = (a.emitNum[i][k] + eps) / (den + kEps)
		}
		if mathutil.Normalize(emit, 0) {
			copy(h.B[i], emit)
		}
	}
}

// TrainOption configures Train.
type TrainOption func(*trainOptions)

type trainOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for per-iteration progress.
func WithLogger(l *slog.Logger) TrainOption {
	return func(o *trainOptions) {
		o.logger = l
	}
}

// Train runs Baum-Welch re-estimation of h on corpus for cfg.Iterations
// iterations, updating h in place. Reaching the iteration budget is not an
// error; the parameters after the last update are kept.
func Train(ctx context.Context, h *HMM, corpus []Sequence, cfg TrainingConfig, opts ...TrainOption) (TrainResult, error) {
	o := trainOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return TrainResult{}, err
	}
	if len(corpus) == 0 {
		return TrainResult{}, fmt.Errorf("%w: no training sequences for %q", ErrInsufficientData, h.Label)
	}
	maxT := 0
	for n, seq := range corpus {
		if err := h.ValidateSequence(seq); err != nil {
			return TrainResult{}, fmt.Errorf("sequence %d: %w", n, err)
		}
		maxT = max(maxT, len(seq))
	}

	logger := o.logger.With("label", h.Label)
	var res TrainResult
	var step func(context.Context) (float64, error)
	switch cfg.Policy {
	case Incremental:
		step = incrementalStep(h, corpus, cfg, maxT)
	default:
		step = batchStep(h, corpus, cfg, maxT)
	}

	for iter := 0; iter < cfg.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ll, err := step(ctx)
		if err != nil {
			return res, err
		}
		res.Iterations = iter + 1
		res.LogLikelihoods = append(res.LogLikelihoods, ll)
		logger.DebugContext(ctx, "baum-welch iteration",
			"iteration", res.Iterations,
			"log_likelihood", ll,
		)
		if cfg.ConvergenceThresh > 0 && iter > 0 && ll-res.LogLikelihoods[iter-1] < cfg.ConvergenceThresh {
			res.Converged = true
			break
		}
	}

	final, err := CorpusLogLikelihood(h, corpus)
	if err != nil {
		return res, err
	}
	res.FinalLogLikelihood = final
	return res, nil
}

// batchStep returns one EM iteration over the whole corpus. With several
// workers each one owns a contiguous slice of the corpus and a private
// accumulator; accumulators are merged in worker order before the update.
func batchStep(h *HMM, corpus []Sequence, cfg TrainingConfig, maxT int) func(context.Context) (float64, error) {
	workers := max(1, min(cfg.Workers, len(corpus)))
	accs := make([]*accumulator, workers)
	wss := make([]*workspace, workers)
	for w := range accs {
		accs[w] = newAccumulator(h.NumStates, h.NumSymbols)
		wss[w] = newWorkspace(maxT, h.NumStates)
	}
	chunk := (len(corpus) + workers - 1) / workers

	return func(ctx context.Context) (float64, error) {
		if workers == 1 {
			accs[0].reset()
			for _, seq := range corpus {
				accs[0].accumulate(h, seq, wss[0], cfg.Epsilon)
			}
		} else {
			g, gctx := errgroup.WithContext(ctx)
			for w := 0; w < workers; w++ {
				acc, ws := accs[w], wss[w]
				acc.reset()
				lo := min(w*chunk, len(corpus))
				hi := min(lo+chunk, len(corpus))
				g.Go(func() error {
					for _, seq := range corpus[lo:hi] {
						if err := gctx.Err(); err != nil {
							return err
						}
						acc.accumulate(h, seq, ws, cfg.Epsilon)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return 0, err
			}
			for _, acc := range accs[1:] {
				accs[0].merge(acc)
			}
		}
		accs[0].reestimate(h, cfg.Epsilon)
		return accs[0].logLik, nil
	}
}

// incrementalStep returns one pass that re-estimates after every sequence.
func incrementalStep(h *HMM, corpus []Sequence, cfg TrainingConfig, maxT int) func(context.Context) (float64, error) {
	acc := newAccumulator(h.NumStates, h.NumSymbols)
	ws := newWorkspace(maxT, h.NumStates)

	return func(ctx context.Context) (float64, error) {
		total := 0.0
		for _, seq := range corpus {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			acc.reset()
			acc.accumulate(h, seq, ws, cfg.Epsilon)
			acc.reestimate(h, cfg.Epsilon)
			total += acc.logLik
		}
		return total, nil
	}
}
