package vqdigit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ieee0824/vqdigit/acoustic"
	"github.com/ieee0824/vqdigit/decoder"
	"github.com/ieee0824/vqdigit/vq"
)

// Logger wraps slog.Logger with recognizer-specific helpers so that every
// stage reports the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewLoggerFromConfig builds a text or JSON logger writing to w.
func NewLoggerFromConfig(w io.Writer, cfg LogConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return NewLogger(slog.NewTextHandler(w, opts)), nil
}

// NoopLogger discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRun tags every record with the training run ID.
func (l *Logger) WithRun(id string) *Logger {
	return &Logger{Logger: l.Logger.With("run", id)}
}

// LogCodebookBuilt logs the outcome of K-means training.
func (l *Logger) LogCodebookBuilt(ctx context.Context, vectors int, cb *vq.Codebook, res vq.Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "codebook build failed",
			"vectors", vectors,
			"error", err,
		)
		return
	}
	level := slog.LevelInfo
	if !res.Converged {
		level = slog.LevelWarn
	}
	l.Log(ctx, level, "codebook built",
		"vectors", vectors,
		"k", cb.K(),
		"dimension", cb.Dim,
		"iterations", res.Iterations,
		"converged", res.Converged,
		"distortion", res.Distortion,
	)
}

// LogQuantized logs the symbol sequences written for one split.
func (l *Logger) LogQuantized(ctx context.Context, split string, utterances, skipped int) {
	if skipped > 0 {
		l.WarnContext(ctx, "quantization completed with skipped utterances",
			"split", split,
			"utterances", utterances,
			"skipped", skipped,
		)
		return
	}
	l.InfoContext(ctx, "quantization completed",
		"split", split,
		"utterances", utterances,
	)
}

// LogClassTrained logs the Baum-Welch result for one class.
func (l *Logger) LogClassTrained(ctx context.Context, label string, sequences int, res acoustic.TrainResult, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"label", label,
			"sequences", sequences,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "trained class model",
		"label", label,
		"sequences", sequences,
		"iterations", res.Iterations,
		"log_likelihood", res.FinalLogLikelihood,
	)
}

// LogEvaluation logs test-set accuracy.
func (l *Logger) LogEvaluation(ctx context.Context, ev *decoder.Evaluation) {
	l.InfoContext(ctx, "evaluation completed",
		"correct", ev.Correct,
		"total", ev.Total,
		"accuracy", ev.Accuracy(),
	)
}
