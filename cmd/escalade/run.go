package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/EscaladeProject/escalade/pkg/artifact"
	"github.com/EscaladeProject/escalade/pkg/config"
	"github.com/EscaladeProject/escalade/pkg/escalator"
	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/provisioner/docker"
	"github.com/EscaladeProject/escalade/pkg/provisioner/fake"
	"github.com/EscaladeProject/escalade/pkg/runner"
	"github.com/EscaladeProject/escalade/pkg/runner/local"
	"github.com/EscaladeProject/escalade/pkg/runner/sshrunner"
)

var (
	runOutputRoot  string
	runKeep        bool
	runMetricsAddr string
	runVerbose     bool
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the escalation loop",
		Long: `Run the test pipeline on the cheapest tier that works.

Examples:
  # Run with the default config file
  escalade run

  # Run a specific config, keep the winning cluster for debugging
  escalade run -f ci/escalade.yaml --keep

  # Expose Prometheus metrics while the run is in flight
  escalade run --metrics-addr :9090`,
		RunE: runEscalation,
	}

	cmd.Flags().StringVar(&runOutputRoot, "output-root", "", "Artifact root directory (overrides config)")
	cmd.Flags().BoolVar(&runKeep, "keep", false, "Keep the successful tier's cluster running")
	cmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Debug logging")

	return cmd
}

func runEscalation(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Defaults()

	catalog, err := cfg.ToCatalog()
	if err != nil {
		return err
	}
	steps, err := cfg.ToSteps()
	if err != nil {
		return err
	}

	outputRoot := cfg.Orchestrator.Spec.OutputRoot
	if runOutputRoot != "" {
		outputRoot = runOutputRoot
	}
	ns := artifact.New(outputRoot)
	defer ns.Close()

	prov, run, err := buildBackend(cfg, logger)
	if err != nil {
		return err
	}

	metrics := escalator.NewMetrics()
	stopMetrics, err := startMetrics(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	esc, err := escalator.New(escalator.Config{
		Catalog:          catalog,
		Provisioner:      prov,
		Runner:           run,
		Artifacts:        ns,
		Steps:            steps,
		Test:             cfg.Suite.Metadata.Name,
		KeepOnSuccess:    cfg.Orchestrator.Spec.KeepOnSuccess || runKeep,
		ProvisionTimeout: cfg.Orchestrator.Spec.ProvisionTimeout.Duration(),
		TeardownTimeout:  cfg.Orchestrator.Spec.TeardownTimeout.Duration(),
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return &config.Error{Err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dp, ok := prov.(*docker.Provisioner); ok {
		defer dp.Close()
		if err := dp.EnsureImage(ctx); err != nil {
			return err
		}
	}

	report, runErr := esc.Run(ctx)

	if err := report.WriteJSON(ns.ReportPath()); err != nil {
		logger.Error("writing report", slog.String("error", err.Error()))
	}

	if err := printReport(report); err != nil {
		return err
	}

	// Unconfirmed teardowns fail the run even when a tier succeeded, so CI
	// never silently leaks paid resources.
	if runErr == nil && len(report.TeardownWarnings()) > 0 {
		return fmt.Errorf("run succeeded but %d cluster teardown(s) unconfirmed, see %s",
			len(report.TeardownWarnings()), ns.ReportPath())
	}
	return runErr
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if runVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// buildBackend constructs the provisioner and runner pair for the configured
// backend type.
func buildBackend(cfg *config.Config, logger *slog.Logger) (provisioner.Provisioner, runner.Runner, error) {
	switch cfg.Provisioner.Spec.Type {
	case "fake":
		p := fake.New(fake.Config{Logger: logger})
		if spec := cfg.Provisioner.Spec.Fake; spec != nil {
			for tierName, reason := range spec.FailTiers {
				p.FailTier(tierName, provisioner.Reason(reason))
			}
		}
		return p, local.New(local.Config{Logger: logger}), nil

	case "docker":
		spec := cfg.Provisioner.Spec.Docker
		password, err := cfg.DockerSSHPassword()
		if err != nil {
			return nil, nil, err
		}
		p, err := docker.New(docker.Config{
			Host:        spec.Host,
			SSHUser:     spec.SSHUser,
			SSHPassword: password,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, err
		}
		r := sshrunner.New(sshrunner.Config{
			User:     spec.SSHUser,
			Password: password,
			Logger:   logger,
		})
		return p, r, nil

	default:
		return nil, nil, &config.Error{
			Err: fmt.Errorf("unknown provisioner type %q", cfg.Provisioner.Spec.Type),
		}
	}
}

// startMetrics serves Prometheus metrics for the duration of the run when an
// address is configured. The returned stop function is safe to call always.
func startMetrics(cfg *config.Config, metrics *escalator.Metrics, logger *slog.Logger) (func(), error) {
	addr := cfg.Orchestrator.Spec.MetricsAddress
	if runMetricsAddr != "" {
		addr = runMetricsAddr
	}
	if addr == "" {
		return func() {}, nil
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func printReport(report *escalator.Report) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "table":
		return printReportTable(report)
	default:
		return &config.Error{Err: fmt.Errorf("unsupported output format: %s", outputFormat)}
	}
}
