package decoder

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ieee0824/vqdigit/acoustic"
)

func benchModels(b *testing.B) []*acoustic.HMM {
	models := make([]*acoustic.HMM, 4)
	for i := range models {
		h, err := acoustic.NewHMM(string(rune('2'+i)), acoustic.DefaultConfig())
		if err != nil {
			b.Fatal(err)
		}
		models[i] = h
	}
	return models
}

func benchSequence(rng *rand.Rand, T int) acoustic.Sequence {
	seq := make(acoustic.Sequence, T)
	for t := range seq {
		seq[t] = rng.Intn(32)
	}
	return seq
}

func BenchmarkClassify_4classes_200frames(b *testing.B) {
	models := benchModels(b)
	seq := benchSequence(rand.New(rand.NewSource(1)), 200)
	b.ResetTimer()
	for b.Loop() {
		Classify(seq, models, DefaultConfig())
	}
}

func BenchmarkClassifyBatch_64seqs_4workers(b *testing.B) {
	models := benchModels(b)
	rng := rand.New(rand.NewSource(1))
	seqs := make([]acoustic.Sequence, 64)
	for i := range seqs {
		seqs[i] = benchSequence(rng, 200)
	}
	cfg := Config{Mode: acoustic.Scaled, Workers: 4}
	b.ResetTimer()
	for b.Loop() {
		ClassifyBatch(context.Background(), seqs, models, cfg)
	}
}
