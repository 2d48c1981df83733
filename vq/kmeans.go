package vq

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/vqdigit/internal/mathutil"
)

// Config holds K-means codebook training parameters.
type Config struct {
	K             int     `yaml:"k"`
	MaxIterations int     `yaml:"max_iterations"`
	Threshold     float64 `yaml:"threshold"` // stop once total centroid movement drops below this
	Workers       int     `yaml:"workers"`   // parallel assignment workers, <=1 runs inline
}

// DefaultConfig returns the codebook parameters used for digit recognition.
func DefaultConfig() Config {
	return Config{
		K:             32,
		MaxIterations: 100,
		Threshold:     1e-4,
		Workers:       1,
	}
}

// Validate checks that the configuration can drive a training run.
func (c Config) Validate() error {
	if c.K <= 0 {
		return ErrInvalidK
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("vq: max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("vq: threshold must be non-negative, got %g", c.Threshold)
	}
	return nil
}

// Cluster is one codebook entry. Count is the number of vectors assigned
// during the most recent iteration.
type Cluster struct {
	Centroid Vector
	Count    int
}

// Codebook is an ordered set of K centroids. The index of a centroid is the
// symbol emitted by the quantizer.
type Codebook struct {
	Dim      int
	Clusters []Cluster
}

// NewCodebook seeds a codebook of k clusters with the first k vectors of data.
func NewCodebook(data []Vector, k int) (*Codebook, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no vectors", ErrInsufficientData)
	}
	if len(data) < k {
		return nil, fmt.Errorf("%w: %d vectors for %d clusters", ErrInsufficientData, len(data), k)
	}
	dim := len(data[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vectors", ErrInsufficientData)
	}
	if err := checkDims(data, dim); err != nil {
		return nil, err
	}

	cb := &Codebook{Dim: dim, Clusters: make([]Cluster, k)}
	for i := range cb.Clusters {
		c := make(Vector, dim)
		copy(c, data[i])
		cb.Clusters[i] = Cluster{Centroid: c}
	}
	return cb, nil
}

// NewCodebookFromCentroids builds a codebook from explicit centroids.
func NewCodebookFromCentroids(centroids []Vector) (*Codebook, error) {
	if len(centroids) == 0 {
		return nil, fmt.Errorf("%w: no centroids", ErrInsufficientData)
	}
	return NewCodebook(centroids, len(centroids))
}

// K returns the number of codewords.
func (cb *Codebook) K() int { return len(cb.Clusters) }

// Centroids returns copies of the centroids in index order.
func (cb *Codebook) Centroids() []Vector {
	out := make([]Vector, len(cb.Clusters))
	for i, c := range cb.Clusters {
		out[i] = append(Vector(nil), c.Centroid...)
	}
	return out
}

// Iterate runs one Lloyd iteration over data: every vector is assigned to
// its nearest centroid, then each non-empty cluster moves to the mean of its
// members. Empty clusters keep their centroid. The returned movement is the
// sum of absolute per-coordinate centroid displacement.
func (cb *Codebook) Iterate(data []Vector) (float64, error) {
	return cb.iterate(context.Background(), data, 1)
}

// clusterAcc holds one worker's per-cluster sums and counts.
type clusterAcc struct {
	sums   mathutil.Mat
	counts []int
}

func (cb *Codebook) newAcc() *clusterAcc {
	return &clusterAcc{
		sums:   mathutil.NewMat(cb.K(), cb.Dim),
		counts: make([]int, cb.K()),
	}
}

func (cb *Codebook) assign(data []Vector, acc *clusterAcc) {
	for _, v := range data {
		k, _ := cb.nearest(v)
		acc.counts[k]++
		floats.Add(acc.sums[k], v)
	}
}

func (cb *Codebook) iterate(ctx context.Context, data []Vector, workers int) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: no vectors", ErrInsufficientData)
	}
	if err := checkDims(data, cb.Dim); err != nil {
		return 0, err
	}

	if workers < 1 {
		workers = 1
	}
	if workers > len(data) {
		workers = len(data)
	}
	accs := make([]*clusterAcc, workers)
	for w := range accs {
		accs[w] = cb.newAcc()
	}

	if workers == 1 {
		cb.assign(data, accs[0])
	} else {
		chunk := (len(data) + workers - 1) / workers
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			lo := w * chunk
			hi := min(lo+chunk, len(data))
			if lo >= hi {
				continue
			}
			acc := accs[w]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				cb.assign(data[lo:hi], acc)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	// Merge in worker order so the result only depends on the worker count.
	total := accs[0]
	for _, acc := range accs[1:] {
		mathutil.AddMat(total.sums, acc.sums)
		for k, n := range acc.counts {
			total.counts[k] += n
		}
	}

	movement := 0.0
	for k := range cb.Clusters {
		cl := &cb.Clusters[k]
		cl.Count = total.counts[k]
		if cl.Count == 0 {
			continue
		}
		mean := total.sums[k]
		floats.Scale(1/float64(cl.Count), mean)
		movement += floats.Distance(cl.Centroid, mean, 1)
		copy(cl.Centroid, mean)
	}
	return movement, nil
}

// Distortion returns the total within-cluster squared error of data under
// the current centroids.
func (cb *Codebook) Distortion(data []Vector) (float64, error) {
	if err := checkDims(data, cb.Dim); err != nil {
		return 0, err
	}
	sse := 0.0
	for _, v := range data {
		_, d := cb.nearest(v)
		sse += d
	}
	return sse, nil
}

// Result summarizes a codebook training run.
type Result struct {
	Iterations int
	Movement   float64 // movement reported by the last iteration
	Converged  bool    // movement fell below the threshold before the budget ran out
	Distortion float64
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for per-iteration progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) {
		o.logger = l
	}
}

// Build trains a K-means codebook on data. Initial centroids are the first
// K vectors; iterations continue until the movement drops below
// cfg.Threshold or cfg.MaxIterations is reached. Running out of iterations
// is reported through Result.Converged, not as an error.
func Build(ctx context.Context, data []Vector, cfg Config, opts ...Option) (*Codebook, Result, error) {
	o := buildOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Result{}, err
	}

	cb, err := NewCodebook(data, cfg.K)
	if err != nil {
		return nil, Result{}, err
	}

	var res Result
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}
		movement, err := cb.iterate(ctx, data, cfg.Workers)
		if err != nil {
			return nil, res, err
		}
		res.Iterations = iter + 1
		res.Movement = movement
		o.logger.DebugContext(ctx, "kmeans iteration",
			"iteration", res.Iterations,
			"movement", movement,
		)
		if movement < cfg.Threshold {
			res.Converged = true
			break
		}
	}

	res.Distortion, err = cb.Distortion(data)
	if err != nil {
		return nil, res, err
	}
	return cb, res, nil
}
