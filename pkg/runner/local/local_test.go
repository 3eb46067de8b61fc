package local

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/runner"
)

func testCluster() *provisioner.Cluster {
	return &provisioner.Cluster{ID: "local-test", Provider: "fake"}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{})

	steps := []runner.Step{
		{Name: "install", Command: "echo installing"},
		{Name: "run", Command: "echo running"},
	}

	results, err := r.Run(context.Background(), testCluster(), steps, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if !res.Succeeded {
			t.Errorf("step %s failed: %v", res.Step.Name, res.Err)
		}
	}

	data, err := os.ReadFile(results[0].OutputPath)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if !strings.Contains(string(data), "installing") {
		t.Errorf("expected captured output, got %q", string(data))
	}
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{})

	steps := []runner.Step{
		{Name: "install", Command: "echo partial output; exit 1"},
		{Name: "run", Command: "echo should not run"},
	}

	results, err := r.Run(context.Background(), testCluster(), steps, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected partial sequence of 1, got %d", len(results))
	}
	if results[0].Succeeded {
		t.Error("expected install to fail")
	}

	// Partial output from the failing step is preserved for diagnosis.
	data, err := os.ReadFile(results[0].OutputPath)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if !strings.Contains(string(data), "partial output") {
		t.Errorf("expected failing step's output to be captured, got %q", string(data))
	}
}

func TestRun_ContinueOnFailure(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{})

	steps := []runner.Step{
		{Name: "lint", Command: "exit 1", ContinueOnFailure: true},
		{Name: "run", Command: "echo ran anyway"},
	}

	results, err := r.Run(context.Background(), testCluster(), steps, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both steps to run, got %d results", len(results))
	}
	if results[0].Succeeded {
		t.Error("expected lint to fail")
	}
	if !results[1].Succeeded {
		t.Errorf("expected run to succeed: %v", results[1].Err)
	}
}

func TestRun_StepEnv(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{})

	steps := []runner.Step{
		{Name: "env", Command: "echo value=$ESCALADE_TEST_VAR", Env: map[string]string{"ESCALADE_TEST_VAR": "hello"}},
	}

	results, err := r.Run(context.Background(), testCluster(), steps, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(results[0].OutputPath)
	if err != nil {
		t.Fatalf("reading capture: %v", err)
	}
	if !strings.Contains(string(data), "value=hello") {
		t.Errorf("expected env to reach the step, got %q", string(data))
	}
}

func TestFirstFailure(t *testing.T) {
	results := []runner.StepResult{
		{Step: runner.Step{Name: "lint", ContinueOnFailure: true}, Succeeded: false},
		{Step: runner.Step{Name: "install"}, Succeeded: true},
		{Step: runner.Step{Name: "run"}, Succeeded: false},
	}
	got := runner.FirstFailure(results)
	if got == nil || got.Step.Name != "run" {
		t.Errorf("expected run to be the pipeline failure, got %+v", got)
	}

	if runner.FirstFailure(results[:2]) != nil {
		t.Error("tolerated failure must not fail the pipeline")
	}
}
