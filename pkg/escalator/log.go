package escalator

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/EscaladeProject/escalade/pkg/runner"
)

// withTee returns a logger that writes to both loggers' handlers, so attempt
// events land in the run's main log and in the attempt's artifact directory.
func withTee(a, b *slog.Logger) *slog.Logger {
	if a == b {
		return a
	}
	return slog.New(&teeHandler{a: a.Handler(), b: b.Handler()})
}

type teeHandler struct {
	a, b slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.a.Enabled(ctx, level) || h.b.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	if h.a.Enabled(ctx, rec.Level) {
		firstErr = h.a.Handle(ctx, rec.Clone())
	}
	if h.b.Enabled(ctx, rec.Level) {
		if err := h.b.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{a: h.a.WithAttrs(attrs), b: h.b.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{a: h.a.WithGroup(name), b: h.b.WithGroup(name)}
}

// stepResultEntry is the serialized form of a step result in steps.json.
type stepResultEntry struct {
	Step       string `json:"step"`
	Succeeded  bool   `json:"succeeded"`
	OutputPath string `json:"outputPath,omitempty"`
	Error      string `json:"error,omitempty"`
}

// writeStepResults records the step-result log in the attempt directory.
// Failure to write it is not worth failing the attempt over.
func writeStepResults(dir string, results []runner.StepResult) {
	entries := make([]stepResultEntry, 0, len(results))
	for _, res := range results {
		entry := stepResultEntry{
			Step:       res.Step.Name,
			Succeeded:  res.Succeeded,
			OutputPath: res.OutputPath,
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(filepath.Join(dir, "steps.json"), data, 0o644)
}
