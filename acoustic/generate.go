package acoustic

import (
	"fmt"
	"math/rand"
)

// draw samples an index from the distribution p.
func draw(p []float64, rng *rand.Rand) int {
	u := rng.Float64()
	acc := 0.0
	for i, x := range p {
		acc += x
		if u < acc {
			return i
		}
	}
	// Rounding left u above the cumulative sum; take the last non-zero entry.
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] > 0 {
			return i
		}
	}
	return len(p) - 1
}

// Generate samples a sequence of length T from h. It is used to build
// synthetic corpora with known generating models.
func Generate(h *HMM, T int, rng *rand.Rand) (Sequence, error) {
	if T <= 0 {
		return nil, fmt.Errorf("acoustic: sequence length must be positive, got %d", T)
	}
	seq := make(Sequence, T)
	state := draw(h.Pi, rng)
	for t := 0; t < T; t++ {
		if t > 0 {
			state = draw(h.A[state], rng)
		}
		seq[t] = draw(h.B[state], rng)
	}
	return seq, nil
}

// GenerateCorpus samples n sequences with lengths drawn uniformly from
// [minLen, maxLen].
func GenerateCorpus(h *HMM, n, minLen, maxLen int, rng *rand.Rand) ([]Sequence, error) {
	if minLen <= 0 || maxLen < minLen {
		return nil, fmt.Errorf("acoustic: invalid length range [%d,%d]", minLen, maxLen)
	}
	out := make([]Sequence, n)
	for i := range out {
		seq, err := Generate(h, minLen+rng.Intn(maxLen-minLen+1), rng)
		if err != nil {
			return nil, err
		}
		out[i] = seq
	}
	return out, nil
}
