package vq

import "math"

// nearest returns the index of the closest centroid and its squared
// distance. Ties resolve to the lowest index.
func (cb *Codebook) nearest(v Vector) (int, float64) {
	best := 0
	bestDist := math.Inf(1)
	for k := range cb.Clusters {
		d := SquaredDistance(v, cb.Clusters[k].Centroid)
		if d < bestDist {
			best = k
			bestDist = d
		}
	}
	return best, bestDist
}

// Nearest returns the index of the centroid closest to v under squared
// Euclidean distance, preferring the lowest index on ties.
func (cb *Codebook) Nearest(v Vector) (int, error) {
	if len(v) != cb.Dim {
		return 0, &ErrDimensionMismatch{Expected: cb.Dim, Actual: len(v), Index: -1}
	}
	k, _ := cb.nearest(v)
	return k, nil
}

// Quantize maps every frame of an utterance to its codeword index.
func (cb *Codebook) Quantize(frames []Vector) ([]int, error) {
	if err := checkDims(frames, cb.Dim); err != nil {
		return nil, err
	}
	syms := make([]int, len(frames))
	for t, v := range frames {
		syms[t], _ = cb.nearest(v)
	}
	return syms, nil
}
