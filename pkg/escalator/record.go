package escalator

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Outcome is the terminal state of one tier attempt.
type Outcome string

const (
	// OutcomeProvisionFailed means the tier never yielded a cluster.
	OutcomeProvisionFailed Outcome = "provision_failed"
	// OutcomeProvisioned means a cluster came up but the pipeline could
	// not be executed on it (the execution backend was unreachable).
	OutcomeProvisioned Outcome = "provisioned"
	// OutcomeStepFailed means a pipeline step failed on the cluster.
	OutcomeStepFailed Outcome = "step_failed"
	// OutcomeSucceeded means every step completed successfully.
	OutcomeSucceeded Outcome = "succeeded"
)

// RunRecord is the append-only log entry for one tier attempt. One record
// exists for every attempted tier, written before the next tier starts.
type RunRecord struct {
	Tier        string        `json:"tier"`
	CostRank    int           `json:"costRank"`
	Outcome     Outcome       `json:"outcome"`
	FailedStep  string        `json:"failedStep,omitempty"`
	Error       string        `json:"error,omitempty"`
	ClusterID   string        `json:"clusterId,omitempty"`
	ArtifactDir string        `json:"artifactDir,omitempty"`
	TeardownErr string        `json:"teardownError,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
}

// Final is the overall outcome of an escalation run.
type Final string

const (
	// FinalDone means some tier succeeded and escalation stopped there.
	FinalDone Final = "done"
	// FinalExhausted means every tier in the catalog failed.
	FinalExhausted Final = "exhausted"
	// FinalCancelled means the run was interrupted before completion.
	FinalCancelled Final = "cancelled"
)

// Report summarizes an escalation run: one record per attempted tier, in
// ascending cost order, plus the overall outcome.
type Report struct {
	RunID         string      `json:"runId"`
	Test          string      `json:"test"`
	Final         Final       `json:"final"`
	Records       []RunRecord `json:"records"`
	KeptClusterID string      `json:"keptClusterId,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
	FinishedAt    time.Time   `json:"finishedAt"`
}

// Succeeded reports whether some tier completed its pipeline.
func (r *Report) Succeeded() bool {
	return r.Final == FinalDone
}

// TeardownWarnings returns the records whose cluster teardown could not be
// confirmed.
func (r *Report) TeardownWarnings() []RunRecord {
	var out []RunRecord
	for _, rec := range r.Records {
		if rec.TeardownErr != "" {
			out = append(out, rec)
		}
	}
	return out
}

// WriteJSON writes the report to path.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
