package decoder

import (
	"context"
	"fmt"

	"github.com/ieee0824/vqdigit/acoustic"
)

// Sample is a test sequence with its reference label.
type Sample struct {
	Label string
	Seq   acoustic.Sequence
}

// Evaluation tallies classification results against reference labels.
type Evaluation struct {
	Labels    []string
	Confusion [][]int // [reference][predicted]
	Correct   int
	Total     int
}

// NewEvaluation returns an empty tally over labels.
func NewEvaluation(labels []string) *Evaluation {
	e := &Evaluation{
		Labels:    append([]string(nil), labels...),
		Confusion: make([][]int, len(labels)),
	}
	for i := range e.Confusion {
		e.Confusion[i] = make([]int, len(labels))
	}
	return e
}

func (e *Evaluation) index(label string) int {
	for i, l := range e.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Add records one prediction.
func (e *Evaluation) Add(reference, predicted string) error {
	ri, pi := e.index(reference), e.index(predicted)
	if ri < 0 {
		return fmt.Errorf("decoder: unknown reference label %q", reference)
	}
	if pi < 0 {
		return fmt.Errorf("decoder: unknown predicted label %q", predicted)
	}
	e.Confusion[ri][pi]++
	e.Total++
	if ri == pi {
		e.Correct++
	}
	return nil
}

// Accuracy returns Correct/Total, or 0 for an empty tally.
func (e *Evaluation) Accuracy() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Total)
}

// ClassAccuracy returns the recall of class i.
func (e *Evaluation) ClassAccuracy(i int) float64 {
	n := 0
	for _, c := range e.Confusion[i] {
		n += c
	}
	if n == 0 {
		return 0
	}
	return float64(e.Confusion[i][i]) / float64(n)
}

// Evaluate classifies every sample against models and tallies the results.
// The label set is taken from the models in order.
func Evaluate(ctx context.Context, samples []Sample, models []*acoustic.HMM, cfg Config) (*Evaluation, error) {
	labels := make([]string, len(models))
	for i, h := range models {
		labels[i] = h.Label
	}
	ev := NewEvaluation(labels)
	for _, s := range samples {
		if ev.index(s.Label) < 0 {
			return nil, fmt.Errorf("decoder: sample label %q has no model", s.Label)
		}
	}

	seqs := make([]acoustic.Sequence, len(samples))
	for i, s := range samples {
		seqs[i] = s.Seq
	}
	results, err := ClassifyBatch(ctx, seqs, models, cfg)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		if err := ev.Add(samples[i].Label, r.Label); err != nil {
			return nil, err
		}
	}
	return ev, nil
}
