// Package runner defines the remote step pipeline contract: an ordered list
// of commands executed on a provisioned cluster, with per-step output
// capture.
package runner

import (
	"context"

	"github.com/EscaladeProject/escalade/pkg/provisioner"
)

// Step is one command in a pipeline. Steps run strictly in order.
type Step struct {
	// Name identifies the step in records and capture files.
	Name string

	// Command is the shell command to execute. Opaque to the orchestrator.
	Command string

	// ContinueOnFailure lets the pipeline proceed past a failed step.
	// Default false: the pipeline stops at the first failure.
	ContinueOnFailure bool

	// Env is prepended to the command's environment.
	Env map[string]string
}

// StepResult records the outcome of a single step.
type StepResult struct {
	Step       Step
	Succeeded  bool
	OutputPath string // Capture file for the step's stdout/stderr.
	Err        error  // Execution error, nil on success.
}

// Runner executes a step pipeline on a cluster. Implementations capture each
// step's combined output under outputDir and never retry a step; retry
// policy, if any, belongs to the step's command.
//
// Run returns the results for the steps that executed. When a step without
// ContinueOnFailure fails, the returned sequence is partial and ends with
// that step. A non-nil error means the backend itself was unusable (for
// example the cluster was unreachable), not that a step failed.
type Runner interface {
	Run(ctx context.Context, c *provisioner.Cluster, steps []Step, outputDir string) ([]StepResult, error)
}

// FirstFailure returns the first failed result whose step does not continue
// on failure, or nil if the pipeline succeeded.
func FirstFailure(results []StepResult) *StepResult {
	for i := range results {
		if !results[i].Succeeded && !results[i].Step.ContinueOnFailure {
			return &results[i]
		}
	}
	return nil
}
