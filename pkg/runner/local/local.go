// Package local executes step pipelines as local shell processes. It backs
// dev runs against the fake provisioner, where there is no remote host to
// SSH into but the pipeline semantics still need exercising end to end.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/EscaladeProject/escalade/pkg/artifact"
	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/runner"
)

// Config configures the local runner.
type Config struct {
	// Shell is the shell binary used to run commands. Default "sh".
	Shell string

	// WorkDir is the working directory for step commands.
	WorkDir string

	// Logger for runner operations.
	Logger *slog.Logger
}

// Runner executes steps with the local shell.
type Runner struct {
	config Config
	logger *slog.Logger
}

// New creates a local runner.
func New(cfg Config) *Runner {
	if cfg.Shell == "" {
		cfg.Shell = "sh"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{config: cfg, logger: logger}
}

// Run executes the steps in order, capturing each step's combined output
// under outputDir. A failed step without ContinueOnFailure ends the
// pipeline with a partial result sequence and a nil error.
func (r *Runner) Run(ctx context.Context, c *provisioner.Cluster, steps []runner.Step, outputDir string) ([]runner.StepResult, error) {
	var results []runner.StepResult
	for _, step := range steps {
		res := r.runStep(ctx, c, step, outputDir)
		results = append(results, res)

		if !res.Succeeded && !step.ContinueOnFailure {
			break
		}
	}
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, c *provisioner.Cluster, step runner.Step, outputDir string) runner.StepResult {
	capturePath := artifact.StepLogPath(outputDir, step.Name)
	res := runner.StepResult{Step: step, OutputPath: capturePath}

	capture, err := os.Create(capturePath)
	if err != nil {
		res.Err = fmt.Errorf("creating capture file: %w", err)
		return res
	}
	defer capture.Close()

	cmd := exec.CommandContext(ctx, r.config.Shell, "-c", step.Command)
	cmd.Dir = r.config.WorkDir
	cmd.Stdout = capture
	cmd.Stderr = capture
	cmd.Env = append(os.Environ(), envList(step.Env)...)

	start := time.Now()
	r.logger.Info("executing step",
		slog.String("cluster_id", c.ID),
		slog.String("step", step.Name),
	)

	if err := cmd.Run(); err != nil {
		res.Err = fmt.Errorf("command exited: %w", err)
		r.logger.Error("step failed",
			slog.String("cluster_id", c.ID),
			slog.String("step", step.Name),
			slog.Duration("duration", time.Since(start)),
			slog.String("capture", capturePath),
			slog.String("error", err.Error()),
		)
		return res
	}

	res.Succeeded = true
	r.logger.Info("step succeeded",
		slog.String("cluster_id", c.ID),
		slog.String("step", step.Name),
		slog.Duration("duration", time.Since(start)),
	)
	return res
}

// envList renders the step environment in deterministic order. Values go
// through the process environment, not the shell, so no quoting is needed.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(env))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

var _ runner.Runner = (*Runner)(nil)
