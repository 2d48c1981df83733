package decoder

// Result holds the classification of one sequence.
type Result struct {
	Label   string  // winning class
	Index   int     // position of the winning class in the model list
	LogProb float64 // log-likelihood under the winning class
	Scores  []Score // every class, in model order
}

// Score holds the log-likelihood of one class and its posterior under a
// uniform class prior.
type Score struct {
	Label     string
	LogProb   float64
	Posterior float64
}

// Margin returns the log-likelihood gap between the winner and the runner-up.
// It is zero when only one class was scored.
func (r *Result) Margin() float64 {
	second := 0.0
	found := false
	for i, s := range r.Scores {
		if i == r.Index {
			continue
		}
		if !found || s.LogProb > second {
			second = s.LogProb
			found = true
		}
	}
	if !found {
		return 0
	}
	return r.LogProb - second
}
