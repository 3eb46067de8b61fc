// Package escalator drives the cost-ordered tier escalation loop: provision
// the cheapest tier, run the step pipeline on it, and only move to a more
// expensive tier after a failure. Success short-circuits the loop; every
// provisioned cluster is released on every exit path.
package escalator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EscaladeProject/escalade/pkg/artifact"
	"github.com/EscaladeProject/escalade/pkg/backoff"
	"github.com/EscaladeProject/escalade/pkg/clock"
	"github.com/EscaladeProject/escalade/pkg/notify"
	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/runner"
	"github.com/EscaladeProject/escalade/pkg/tier"
)

// ErrExhausted is returned when every tier in the catalog failed.
var ErrExhausted = errors.New("all tiers failed")

// Config configures an Escalator.
type Config struct {
	// Catalog is the ordered tier catalog. Required.
	Catalog *tier.Catalog

	// Provisioner launches and destroys clusters. Required.
	Provisioner provisioner.Provisioner

	// Runner executes the step pipeline on a cluster. Required.
	Runner runner.Runner

	// Artifacts namespaces output per (tier, test). Required.
	Artifacts *artifact.Namespace

	// Steps is the pipeline to run on each provisioned tier. Required.
	Steps []runner.Step

	// Test names the pipeline for artifact namespacing. Required.
	Test string

	// KeepOnSuccess leaves the successful tier's cluster running for
	// interactive follow-up instead of tearing it down.
	KeepOnSuccess bool

	// ProvisionTimeout bounds each tier's provisioning attempt,
	// including capacity waits. Default 30 minutes.
	ProvisionTimeout time.Duration

	// TeardownTimeout bounds each cluster release. Default 5 minutes.
	TeardownTimeout time.Duration

	// InfraPolicy retries calls whose backend is unreachable. Defaults
	// to backoff.Infrastructure().
	InfraPolicy *backoff.Policy

	// Clock abstracts time for tests. Nil means real time.
	Clock clock.Clock

	// Logger for orchestration events. Nil means slog.Default().
	Logger *slog.Logger

	// Notifier receives leaked-resource and exhaustion events. Nil means
	// log-only notifications.
	Notifier notify.Notifier

	// Metrics, when set, records attempt outcomes.
	Metrics *Metrics
}

// Escalator walks the tier catalog, cheapest first, until one tier runs the
// pipeline to completion or the catalog is exhausted.
type Escalator struct {
	cfg         Config
	clk         clock.Clock
	logger      *slog.Logger
	notifier    notify.Notifier
	infraPolicy backoff.Policy
}

// New validates the configuration and creates an Escalator.
func New(cfg Config) (*Escalator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Provisioner == nil {
		return nil, fmt.Errorf("provisioner is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Artifacts == nil {
		return nil, fmt.Errorf("artifact namespace is required")
	}
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("step pipeline is empty")
	}
	if cfg.Test == "" {
		return nil, fmt.Errorf("test name is required")
	}
	if cfg.ProvisionTimeout == 0 {
		cfg.ProvisionTimeout = 30 * time.Minute
	}
	if cfg.TeardownTimeout == 0 {
		cfg.TeardownTimeout = 5 * time.Minute
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	policy := backoff.Infrastructure()
	if cfg.InfraPolicy != nil {
		policy = *cfg.InfraPolicy
	}
	// Typed provisioning failures are tier outcomes, not infrastructure
	// flakes; only untyped backend errors are retried.
	policy.Retryable = func(err error) bool {
		var pe *provisioner.Error
		return !errors.As(err, &pe)
	}
	if policy.Clock == nil {
		policy.Clock = clk
	}

	return &Escalator{
		cfg:         cfg,
		clk:         clk,
		logger:      logger,
		notifier:    notifier,
		infraPolicy: policy,
	}, nil
}

// Run walks the catalog in ascending cost order. It returns the report and,
// when no tier succeeded, ErrExhausted. The report is valid even when an
// error is returned.
func (e *Escalator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Test:      e.cfg.Test,
		StartedAt: e.clk.Now(),
	}

	tiers := e.cfg.Catalog.Tiers()
	e.logger.Info("escalation run starting",
		slog.String("run_id", report.RunID),
		slog.String("test", e.cfg.Test),
		slog.Int("tiers", len(tiers)),
	)

	for i, t := range tiers {
		if err := ctx.Err(); err != nil {
			report.Final = FinalCancelled
			report.FinishedAt = e.clk.Now()
			return report, err
		}

		e.logger.Info("attempting tier",
			slog.String("tier", t.Name),
			slog.Int("cost_rank", t.CostRank),
			slog.Int("position", i+1),
			slog.Int("total", len(tiers)),
		)

		rec, kept := e.attemptTier(ctx, t)
		report.Records = append(report.Records, rec)
		e.cfg.Metrics.observeAttempt(rec)

		if rec.Outcome == OutcomeSucceeded {
			report.Final = FinalDone
			report.FinishedAt = e.clk.Now()
			if kept != nil {
				report.KeptClusterID = kept.ID
			}
			e.logger.Info("tier succeeded, stopping escalation",
				slog.String("tier", t.Name),
			)
			return report, nil
		}

		e.logger.Warn("tier failed",
			slog.String("tier", t.Name),
			slog.String("outcome", string(rec.Outcome)),
			slog.String("failed_step", rec.FailedStep),
		)
	}

	report.Final = FinalExhausted
	report.FinishedAt = e.clk.Now()
	e.notifier.Notify(ctx, notify.Event{
		Type:    notify.TypeRunExhausted,
		Message: fmt.Sprintf("all %d tiers failed for test %s", len(tiers), e.cfg.Test),
	})
	return report, ErrExhausted
}

// attemptTier runs one full tier attempt: provision, pipeline, teardown.
// The returned cluster is non-nil only when it was deliberately kept alive.
// Named returns let the teardown defer record its outcome on every path.
func (e *Escalator) attemptTier(ctx context.Context, t tier.Tier) (rec RunRecord, kept *provisioner.Cluster) {
	rec = RunRecord{
		Tier:      t.Name,
		CostRank:  t.CostRank,
		StartedAt: e.clk.Now(),
	}

	dir, err := e.cfg.Artifacts.Resolve(t.Name, e.cfg.Test)
	if err != nil {
		// Unrecoverable filesystem condition: nothing was provisioned,
		// record the attempt and let escalation continue.
		rec.Outcome = OutcomeProvisionFailed
		rec.Error = err.Error()
		rec.Duration = e.clk.Since(rec.StartedAt)
		return rec, nil
	}
	rec.ArtifactDir = dir

	attemptLog, err := e.cfg.Artifacts.CreateAttemptLogger(dir)
	if err != nil {
		attemptLog = e.logger
	}
	logger := withTee(e.logger, attemptLog).With(slog.String("tier", t.Name))

	cluster, err := e.provision(ctx, t, logger)
	if err != nil {
		// Nothing was created; teardown is a no-op by construction.
		rec.Outcome = OutcomeProvisionFailed
		rec.Error = err.Error()
		rec.Duration = e.clk.Since(rec.StartedAt)
		logger.Error("provisioning failed",
			slog.String("reason", string(provisioner.ReasonOf(err))),
			slog.String("error", err.Error()),
		)
		return rec, nil
	}
	rec.ClusterID = cluster.ID

	// The handle is registered for teardown before any step executes, so
	// every exit path below releases it exactly once.
	defer func() {
		if kept != nil {
			logger.Info("keeping cluster alive", slog.String("cluster_id", cluster.ID))
			return
		}
		if terr := e.release(ctx, cluster, logger); terr != nil {
			rec.TeardownErr = terr.Error()
		}
		rec.Duration = e.clk.Since(rec.StartedAt)
	}()

	results, err := e.runPipeline(ctx, cluster, dir, logger)
	if err != nil {
		rec.Outcome = OutcomeProvisioned
		rec.Error = err.Error()
		return rec, nil
	}

	writeStepResults(dir, results)

	if failure := runner.FirstFailure(results); failure != nil {
		rec.Outcome = OutcomeStepFailed
		rec.FailedStep = failure.Step.Name
		if failure.Err != nil {
			rec.Error = failure.Err.Error()
		}
		return rec, nil
	}

	rec.Outcome = OutcomeSucceeded
	if e.cfg.KeepOnSuccess {
		rec.Duration = e.clk.Since(rec.StartedAt)
		return rec, cluster
	}
	return rec, nil
}

func (e *Escalator) provision(ctx context.Context, t tier.Tier, logger *slog.Logger) (*provisioner.Cluster, error) {
	pctx, cancel := context.WithTimeout(ctx, e.cfg.ProvisionTimeout)
	defer cancel()

	logger.Info("provisioning",
		slog.String("provider", e.cfg.Provisioner.Name()),
		slog.Bool("retry_until_capacity", t.Launch.RetryUntilCapacity),
	)

	return backoff.RetryValue(pctx, e.infraPolicy, func(ctx context.Context) (*provisioner.Cluster, error) {
		return e.cfg.Provisioner.Provision(ctx, t)
	})
}

func (e *Escalator) runPipeline(ctx context.Context, c *provisioner.Cluster, dir string, logger *slog.Logger) ([]runner.StepResult, error) {
	logger.Info("running step pipeline",
		slog.String("cluster_id", c.ID),
		slog.Int("steps", len(e.cfg.Steps)),
	)

	// The runner reports step failures in the results, not as an error, so
	// only backend-unreachable failures are retried here.
	return backoff.RetryValue(ctx, e.infraPolicy, func(ctx context.Context) ([]runner.StepResult, error) {
		return e.cfg.Runner.Run(ctx, c, e.cfg.Steps, dir)
	})
}

// release destroys the cluster on a context detached from the run's, so a
// cancelled run still tears down. A failed teardown is reported and notified
// but never blocks escalation.
func (e *Escalator) release(ctx context.Context, c *provisioner.Cluster, logger *slog.Logger) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.TeardownTimeout)
	defer cancel()

	logger.Info("releasing cluster", slog.String("cluster_id", c.ID))
	err := e.cfg.Provisioner.Destroy(dctx, c)
	if err == nil {
		return nil
	}

	logger.Error("teardown unconfirmed, resource needs manual cleanup",
		slog.String("cluster_id", c.ID),
		slog.String("error", err.Error()),
	)
	e.notifier.Notify(dctx, notify.Event{
		Type:      notify.TypeLeakedCluster,
		Tier:      c.Tier.Name,
		ClusterID: c.ID,
		Message:   err.Error(),
	})
	return err
}
