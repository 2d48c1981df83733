package mathutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogZero stands in for log(0) in log-domain tables.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)). A term more than 36 nats below the
// other is below float64 precision and is dropped.
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if b <= LogZero {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSumExp returns log(Σ exp(x)). An empty slice yields LogZero.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return LogZero
	}
	return floats.LogSumExp(xs)
}
