package vq

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns n points per center, jittered uniformly by ±spread.
func blobs(rng *rand.Rand, centers []Vector, n int, spread float64) []Vector {
	var out []Vector
	for i := 0; i < n; i++ {
		for _, c := range centers {
			v := make(Vector, len(c))
			for d := range c {
				v[d] = c[d] + spread*(2*rng.Float64()-1)
			}
			out = append(out, v)
		}
	}
	return out
}

func TestQuantizeTwoCentroids(t *testing.T) {
	cb, err := NewCodebookFromCentroids([]Vector{{0, 0}, {10, 10}})
	require.NoError(t, err)

	k, err := cb.Nearest(Vector{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, k)
	k, err = cb.Nearest(Vector{9, 9})
	require.NoError(t, err)
	assert.Equal(t, 1, k)

	syms, err := cb.Quantize([]Vector{{1, 1}, {9, 9}, {4, 4}, {6, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0, 1}, syms)
}

func TestNearestTieAndDuplicates(t *testing.T) {
	cb, err := NewCodebookFromCentroids([]Vector{{1, 1}, {0, 0}, {0, 0}, {2, 2}})
	require.NoError(t, err)

	k, err := cb.Nearest(Vector{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, k)

	// Equidistant from {0,0} and {2,2}; {1,1} is closer still.
	k, err = cb.Nearest(Vector{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, k)

	cb2, err := NewCodebookFromCentroids([]Vector{{2}, {0}})
	require.NoError(t, err)
	k, err = cb2.Nearest(Vector{1})
	require.NoError(t, err)
	assert.Equal(t, 0, k)
}

func TestQuantizeIsIdempotentOnCentroids(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := blobs(rng, []Vector{{0, 0, 0}, {5, 5, 5}, {-5, 5, 0}}, 20, 1)
	cb, _, err := Build(context.Background(), data, Config{K: 3, MaxIterations: 50, Threshold: 1e-9, Workers: 1})
	require.NoError(t, err)

	for k, c := range cb.Centroids() {
		got, err := cb.Nearest(c)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestNearestDimensionMismatch(t *testing.T) {
	cb, err := NewCodebookFromCentroids([]Vector{{0, 0}})
	require.NoError(t, err)

	_, err = cb.Nearest(Vector{1, 2, 3})
	var dm *ErrDimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
	assert.Equal(t, -1, dm.Index)

	_, err = cb.Quantize([]Vector{{0, 0}, {1}})
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 1, dm.Index)
}

func TestNewCodebookUsesFirstK(t *testing.T) {
	data := []Vector{{3, 3}, {1, 1}, {7, 7}, {0, 0}}
	cb, err := NewCodebook(data, 2)
	require.NoError(t, err)
	assert.Equal(t, []Vector{{3, 3}, {1, 1}}, cb.Centroids())

	// Centroids do not alias the input.
	cb.Clusters[0].Centroid[0] = 99
	assert.Equal(t, 3.0, data[0][0])
}

func TestNewCodebookErrors(t *testing.T) {
	_, err := NewCodebook(nil, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewCodebook([]Vector{{1}}, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = NewCodebook([]Vector{{1}}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = NewCodebook([]Vector{{1, 2}, {1}}, 1)
	var dm *ErrDimensionMismatch
	assert.True(t, errors.As(err, &dm))
}

func TestIterateFixedPoint(t *testing.T) {
	data := []Vector{{0, 0}, {10, 10}, {0, 0}, {10, 10}}
	cb, err := NewCodebook(data, 2)
	require.NoError(t, err)

	mv, err := cb.Iterate(data)
	require.NoError(t, err)
	assert.Zero(t, mv)
	assert.Equal(t, []Vector{{0, 0}, {10, 10}}, cb.Centroids())
	assert.Equal(t, 2, cb.Clusters[0].Count)
	assert.Equal(t, 2, cb.Clusters[1].Count)
}

func TestIterateMovement(t *testing.T) {
	data := []Vector{{0, 0}, {10, 10}, {2, 0}, {10, 12}}
	cb, err := NewCodebook(data, 2)
	require.NoError(t, err)

	mv, err := cb.Iterate(data)
	require.NoError(t, err)
	// (0,0)->(1,0) and (10,10)->(10,11).
	assert.InDelta(t, 2.0, mv, 1e-12)
	assert.Equal(t, []Vector{{1, 0}, {10, 11}}, cb.Centroids())
}

func TestIterateEmptyClusterKeepsCentroid(t *testing.T) {
	cb, err := NewCodebookFromCentroids([]Vector{{0}, {100}, {0}})
	require.NoError(t, err)

	// The duplicate centroid at index 2 never wins a vector.
	_, err = cb.Iterate([]Vector{{1}, {-1}, {99}})
	require.NoError(t, err)
	assert.Equal(t, 0, cb.Clusters[2].Count)
	assert.Equal(t, Vector{0}, cb.Clusters[2].Centroid)
	assert.Equal(t, Vector{99}, cb.Clusters[1].Centroid)
}

func TestIterateDistortionNonIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := blobs(rng, []Vector{{0, 0}, {4, 0}, {0, 4}, {4, 4}}, 50, 1.5)
	rng.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })

	cb, err := NewCodebook(data, 6)
	require.NoError(t, err)
	prev, err := cb.Distortion(data)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := cb.Iterate(data)
		require.NoError(t, err)
		sse, err := cb.Distortion(data)
		require.NoError(t, err)
		assert.LessOrEqual(t, sse, prev+1e-9, "iteration %d", i)
		prev = sse
	}
}

func TestBuildConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	centers := []Vector{{0, 0}, {20, 0}, {0, 20}}
	data := blobs(rng, centers, 40, 1)

	cb, res, err := Build(context.Background(), data, Config{K: 3, MaxIterations: 100, Threshold: 1e-6, Workers: 1})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Less(t, res.Iterations, 100)
	assert.Less(t, res.Movement, 1e-6)

	// blobs interleaves centers, so the first three vectors seed one
	// centroid near each center in order.
	for k, c := range cb.Centroids() {
		assert.InDelta(t, centers[k][0], c[0], 0.5)
		assert.InDelta(t, centers[k][1], c[1], 0.5)
	}
	sse, err := cb.Distortion(data)
	require.NoError(t, err)
	assert.InDelta(t, sse, res.Distortion, 1e-9)
}

func TestBuildBudgetExhaustedIsNotError(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	data := blobs(rng, []Vector{{0}, {3}}, 100, 2)
	_, res, err := Build(context.Background(), data, Config{K: 8, MaxIterations: 1, Threshold: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Converged)
}

func TestBuildParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	data := blobs(rng, []Vector{{0, 0, 0}, {3, 3, 3}, {-3, 0, 3}, {0, 6, 0}}, 60, 2)

	cfg := Config{K: 8, MaxIterations: 30, Threshold: 1e-8, Workers: 1}
	serial, rs, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)
	cfg.Workers = 4
	parallel, rp, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	assert.Equal(t, rs.Iterations, rp.Iterations)
	for k := range serial.Clusters {
		assert.InDeltaSlice(t, serial.Clusters[k].Centroid, parallel.Clusters[k].Centroid, 1e-9)
		assert.Equal(t, serial.Clusters[k].Count, parallel.Clusters[k].Count)
	}
}

func TestBuildErrors(t *testing.T) {
	_, _, err := Build(context.Background(), nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = Build(context.Background(), []Vector{{1}, {2}}, Config{K: 0, MaxIterations: 1})
	assert.ErrorIs(t, err, ErrInvalidK)

	_, _, err = Build(context.Background(), []Vector{{1}, {2}}, Config{K: 1, MaxIterations: 0})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Build(ctx, []Vector{{1}, {2}}, Config{K: 1, MaxIterations: 5})
	assert.ErrorIs(t, err, context.Canceled)
}
