package acoustic

import (
	"math"

	"github.com/ieee0824/vqdigit/internal/mathutil"
)

// Alignment is the most likely state path for a sequence.
type Alignment struct {
	States  []int
	LogProb float64 // log P(seq, States | h)
}

// Segment is a run of consecutive frames spent in one state.
type Segment struct {
	State      int
	StartFrame int // inclusive
	EndFrame   int // exclusive
}

// safeLog maps zero probabilities to LogZero.
func safeLog(p float64) float64 {
	if p <= 0 {
		return mathutil.LogZero
	}
	return math.Log(p)
}

// Viterbi returns the single best state path for seq under h, computed in the
// log domain. Ties between predecessors resolve to the lowest state index.
func Viterbi(h *HMM, seq Sequence) (*Alignment, error) {
	if err := h.ValidateSequence(seq); err != nil {
		return nil, err
	}
	T, S := len(seq), h.NumStates

	logA := mathutil.NewMat(S, S)
	for i := range h.A {
		for j := range h.A[i] {
			logA[i][j] = safeLog(h.A[i][j])
		}
	}

	prev := mathutil.NewVecFill(S, mathutil.LogZero)
	curr := mathutil.NewVecFill(S, mathutil.LogZero)
	bp := make([][]int32, T)
	for t := range bp {
		bp[t] = make([]int32, S)
	}

	for i := 0; i < S; i++ {
		prev[i] = safeLog(h.Pi[i]) + safeLog(h.B[i][seq[0]])
	}

	for t := 1; t < T; t++ {
		o := seq[t]
		for j := 0; j < S; j++ {
			best := math.Inf(-1)
			arg := int32(0)
			for i := 0; i < S; i++ {
				if s := prev[i] + logA[i][j]; s > best {
					best = s
					arg = int32(i)
				}
			}
			curr[j] = best + safeLog(h.B[j][o])
			bp[t][j] = arg
		}
		prev, curr = curr, prev
	}

	last := 0
	for i := 1; i < S; i++ {
		if prev[i] > prev[last] {
			last = i
		}
	}

	path := make([]int, T)
	path[T-1] = last
	for t := T - 1; t > 0; t-- {
		path[t-1] = int(bp[t][path[t]])
	}
	return &Alignment{States: path, LogProb: prev[last]}, nil
}

// Segments collapses the path into runs of identical states.
func (a *Alignment) Segments() []Segment {
	if len(a.States) == 0 {
		return nil
	}
	var out []Segment
	start := 0
	for t := 1; t <= len(a.States); t++ {
		if t == len(a.States) || a.States[t] != a.States[start] {
			out = append(out, Segment{State: a.States[start], StartFrame: start, EndFrame: t})
			start = t
		}
	}
	return out
}
