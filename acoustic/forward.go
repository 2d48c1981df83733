package acoustic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/vqdigit/internal/mathutil"
)

// ScaleFloor is added to every forward normalizer. A time step whose total
// probability is zero then contributes log(ScaleFloor) instead of -Inf.
const ScaleFloor = 1e-300

// ScoreMode selects the forward recurrence used for scoring.
type ScoreMode string

const (
	// Scaled normalizes alpha at every step and recovers the log-likelihood
	// from the scale coefficients. It is safe for sequences of any length.
	Scaled ScoreMode = "scaled"

	// Unscaled accumulates raw probabilities. It matches Scaled while the
	// product of per-step probabilities stays above float64 underflow, which
	// in practice limits it to short sequences over small models.
	Unscaled ScoreMode = "unscaled"
)

// workspace holds the per-sequence scratch tables of one forward/backward
// pass. A workspace belongs to a single goroutine.
type workspace struct {
	alpha mathutil.Mat // [T][S]
	beta  mathutil.Mat // [T][S]
	gamma mathutil.Mat // [T][S]
	xi    mathutil.Mat // [S][S], one time step
	scale mathutil.Vec // [T]
}

func newWorkspace(T, S int) *workspace {
	return &workspace{
		alpha: mathutil.NewMat(T, S),
		beta:  mathutil.NewMat(T, S),
		gamma: mathutil.NewMat(T, S),
		xi:    mathutil.NewMat(S, S),
		scale: mathutil.NewVec(T),
	}
}

// forwardScaled fills alpha[:T] with the scaled forward variables and scale[:T]
// with the per-step coefficients c_t, and returns log P(seq | h) = -Σ log c_t.
func forwardScaled(h *HMM, seq Sequence, alpha mathutil.Mat, scale mathutil.Vec) float64 {
	T := len(seq)
	S := h.NumStates

	o0 := seq[0]
	a0 := alpha[0]
	for i := 0; i < S; i++ {
		a0[i] = h.Pi[i] * h.B[i][o0]
	}
	scale[0] = 1 / (floats.Sum(a0) + ScaleFloor)
	floats.Scale(scale[0], a0)

	for t := 1; t < T; t++ {
		prev, cur := alpha[t-1], alpha[t]
		ot := seq[t]
		for j := 0; j < S; j++ {
			acc := 0.0
			for i := 0; i < S; i++ {
				acc += prev[i] * h.A[i][j]
			}
			cur[j] = acc * h.B[j][ot]
		}
		scale[t] = 1 / (floats.Sum(cur) + ScaleFloor)
		floats.Scale(scale[t], cur)
	}

	ll := 0.0
	for t := 0; t < T; t++ {
		ll -= math.Log(scale[t])
	}
	return ll
}

// forwardUnscaled fills alpha[:T] with raw forward probabilities and returns
// log(Σ_i alpha[T-1][i] + ScaleFloor).
func forwardUnscaled(h *HMM, seq Sequence, alpha mathutil.Mat) float64 {
	T := len(seq)
	S := h.NumStates

	o0 := seq[0]
	for i := 0; i < S; i++ {
		alpha[0][i] = h.Pi[i] * h.B[i][o0]
	}
	for t := 1; t < T; t++ {
		prev, cur := alpha[t-1], alpha[t]
		ot := seq[t]
		for j := 0; j < S; j++ {
			acc := 0.0
			for i := 0; i < S; i++ {
				acc += prev[i] * h.A[i][j]
			}
			cur[j] = acc * h.B[j][ot]
		}
	}
	return math.Log(floats.Sum(alpha[T-1]) + ScaleFloor)
}

// backwardScaled fills beta[:T] using the forward scale coefficients, so that
// alpha[t][i]*beta[t][i] is proportional to P(q_t = i | seq, h).
func backwardScaled(h *HMM, seq Sequence, scale mathutil.Vec, beta mathutil.Mat) {
	T := len(seq)
	S := h.NumStates

	mathutil.FillVec(beta[T-1], scale[T-1])
	for t := T - 2; t >= 0; t-- {
		next := seq[t+1]
		nb := beta[t+1]
		for i := 0; i < S; i++ {
			acc := 0.0
			for j := 0; j < S; j++ {
				acc += h.A[i][j] * h.B[j][next] * nb[j]
			}
			beta[t][i] = acc * scale[t]
		}
	}
}

// Score returns the natural-log likelihood of seq under h using the given
// recurrence. The result is always finite.
func Score(h *HMM, seq Sequence, mode ScoreMode) (float64, error) {
	if err := h.ValidateSequence(seq); err != nil {
		return 0, err
	}
	alpha := mathutil.NewMat(len(seq), h.NumStates)
	switch mode {
	case Scaled, "":
		return forwardScaled(h, seq, alpha, mathutil.NewVec(len(seq))), nil
	case Unscaled:
		return forwardUnscaled(h, seq, alpha), nil
	default:
		return 0, fmt.Errorf("acoustic: unknown score mode %q", mode)
	}
}

// LogLikelihood returns log P(seq | h) computed with the scaled forward
// recurrence.
func LogLikelihood(h *HMM, seq Sequence) (float64, error) {
	return Score(h, seq, Scaled)
}

// CorpusLogLikelihood sums LogLikelihood over corpus.
func CorpusLogLikelihood(h *HMM, corpus []Sequence) (float64, error) {
	total := 0.0
	for n, seq := range corpus {
		ll, err := LogLikelihood(h, seq)
		if err != nil {
			return 0, fmt.Errorf("sequence %d: %w", n, err)
		}
		total += ll
	}
	return total, nil
}

// Forward returns the scaled forward variables alpha[t][i] (each row sums to
// one up to ScaleFloor) and the scale coefficients c_t.
func Forward(h *HMM, seq Sequence) (mathutil.Mat, mathutil.Vec, error) {
	if err := h.ValidateSequence(seq); err != nil {
		return nil, nil, err
	}
	alpha := mathutil.NewMat(len(seq), h.NumStates)
	scale := mathutil.NewVec(len(seq))
	forwardScaled(h, seq, alpha, scale)
	return alpha, scale, nil
}

// Backward returns the backward variables scaled by the coefficients that
// Forward produced for the same sequence.
func Backward(h *HMM, seq Sequence, scale mathutil.Vec) (mathutil.Mat, error) {
	if err := h.ValidateSequence(seq); err != nil {
		return nil, err
	}
	if len(scale) != len(seq) {
		return nil, fmt.Errorf("acoustic: %d scale coefficients for sequence of length %d", len(scale), len(seq))
	}
	beta := mathutil.NewMat(len(seq), h.NumStates)
	backwardScaled(h, seq, scale, beta)
	return beta, nil
}
