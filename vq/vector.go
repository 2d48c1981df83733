// Package vq builds vector-quantization codebooks with K-means and maps
// continuous feature vectors onto the codebook's discrete alphabet.
package vq

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when there are no vectors to cluster
	// or fewer vectors than requested clusters.
	ErrInsufficientData = errors.New("vq: insufficient data")

	// ErrInvalidK is returned when the cluster count is not positive.
	ErrInvalidK = errors.New("vq: k must be positive")
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// codebook dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	Index    int // position of the offending vector in its batch, -1 if single
}

func (e *ErrDimensionMismatch) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("vq: dimension mismatch at vector %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
	}
	return fmt.Sprintf("vq: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Vector is a fixed-dimension feature vector.
type Vector []float64

// SquaredDistance returns the squared Euclidean distance between a and b.
// Both must have the same length.
func SquaredDistance(a, b Vector) float64 {
	sum := 0.0
	for i, x := range a {
		d := x - b[i]
		sum += d * d
	}
	return sum
}

func checkDims(data []Vector, dim int) error {
	for i, v := range data {
		if len(v) != dim {
			return &ErrDimensionMismatch{Expected: dim, Actual: len(v), Index: i}
		}
	}
	return nil
}
