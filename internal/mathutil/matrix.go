package mathutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vec is a float64 vector.
type Vec = []float64

// Mat is a 2D float64 matrix stored as row-major [][]float64.
type Mat = [][]float64

// NewVec creates a zero vector of length n.
func NewVec(n int) Vec {
	return make(Vec, n)
}

// NewVecFill creates a vector of length n filled with val.
func NewVecFill(n int, val float64) Vec {
	v := make(Vec, n)
	FillVec(v, val)
	return v
}

// NewMat creates a rows x cols matrix initialized to zero.
// All rows share one backing array.
func NewMat(rows, cols int) Mat {
	m := make(Mat, rows)
	data := make([]float64, rows*cols)
	for i := range m {
		m[i] = data[i*cols : (i+1)*cols]
	}
	return m
}

// NewMatFill creates a rows x cols matrix filled with val.
func NewMatFill(rows, cols int, val float64) Mat {
	m := NewMat(rows, cols)
	FillMat(m, val)
	return m
}

// CloneMat returns a deep copy of m.
func CloneMat(m Mat) Mat {
	if len(m) == 0 {
		return Mat{}
	}
	out := NewMat(len(m), len(m[0]))
	for i := range m {
		copy(out[i], m[i])
	}
	return out
}

// FillMat fills all elements of an existing matrix with val.
func FillMat(m Mat, val float64) {
	for i := range m {
		FillVec(m[i], val)
	}
}

// FillVec fills all elements of an existing vector with val.
func FillVec(v Vec, val float64) {
	for i := range v {
		v[i] = val
	}
}

// AddMat adds src into dst element-wise. Shapes must match.
func AddMat(dst, src Mat) {
	for i := range dst {
		floats.Add(dst[i], src[i])
	}
}

// Normalize rescales v in place so that it sums to one.
// If the sum does not exceed floor, v is left untouched and false is returned.
func Normalize(v Vec, floor float64) bool {
	s := floats.Sum(v)
	if !(s > floor) {
		return false
	}
	floats.Scale(1/s, v)
	return true
}

// IsStochastic reports whether v is a probability distribution:
// all entries non-negative and finite, summing to one within tol.
func IsStochastic(v Vec, tol float64) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		if x < 0 || math.IsNaN(x) || x > 1+tol {
			return false
		}
	}
	s := floats.Sum(v)
	return s >= 1-tol && s <= 1+tol
}
