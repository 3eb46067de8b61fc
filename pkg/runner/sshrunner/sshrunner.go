// Package sshrunner executes step pipelines on a cluster over SSH.
package sshrunner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"golang.org/x/crypto/ssh"

	"github.com/EscaladeProject/escalade/pkg/artifact"
	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/runner"
)

// Config configures the SSH runner.
type Config struct {
	// User is the SSH user on the cluster.
	User string

	// PrivateKeyPath is the path to the SSH private key.
	PrivateKeyPath string

	// Password is used when no private key is configured. Resolved from
	// the environment, never from config files.
	Password string

	// ConnectTimeout bounds the wait for SSH to come up after
	// provisioning. Default 10 minutes.
	ConnectTimeout time.Duration

	// DialInterval is the delay between connection attempts. Default 5s.
	DialInterval time.Duration

	// Logger for runner operations.
	Logger *slog.Logger
}

// Runner runs steps on a cluster via SSH, capturing each step's combined
// output to a file in the attempt's artifact directory.
type Runner struct {
	config Config
	logger *slog.Logger
}

// New creates an SSH runner.
func New(cfg Config) *Runner {
	if cfg.User == "" {
		cfg.User = "ubuntu"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Minute
	}
	if cfg.DialInterval == 0 {
		cfg.DialInterval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{config: cfg, logger: logger}
}

// Run executes the steps in order. A failed step without ContinueOnFailure
// ends the pipeline; the partial result sequence is returned with a nil
// error. A non-nil error means the cluster could not be reached at all.
func (r *Runner) Run(ctx context.Context, c *provisioner.Cluster, steps []runner.Step, outputDir string) ([]runner.StepResult, error) {
	client, err := r.connect(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("connecting to cluster %s: %w", c.ID, err)
	}
	defer client.Close()

	var results []runner.StepResult
	for i, step := range steps {
		res := r.runStep(ctx, client, c, step, outputDir, i+1, len(steps))
		results = append(results, res)

		if !res.Succeeded && !step.ContinueOnFailure {
			break
		}
	}
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, client *ssh.Client, c *provisioner.Cluster, step runner.Step, outputDir string, num, total int) runner.StepResult {
	capturePath := artifact.StepLogPath(outputDir, step.Name)
	res := runner.StepResult{Step: step, OutputPath: capturePath}

	capture, err := os.Create(capturePath)
	if err != nil {
		res.Err = fmt.Errorf("creating capture file: %w", err)
		return res
	}
	defer capture.Close()

	start := time.Now()
	r.logger.Info("executing step",
		slog.String("cluster_id", c.ID),
		slog.String("step", step.Name),
		slog.Int("num", num),
		slog.Int("total", total),
	)

	err = r.execute(ctx, client, buildCommand(step), capture)
	if err != nil {
		res.Err = err
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

func (r *Runner) execute(ctx context.Context, client *ssh.Client, cmd string, capture io.Writer) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("creating SSH session: %w", err)
	}
	defer session.Close()

	session.Stdout = capture
	session.Stderr = capture

	done := make(chan error, 1)
	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("starting command: %w", err)
	}
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("command exited: %w", err)
		}
		return nil
	}
}

func (r *Runner) connect(ctx context.Context, c *provisioner.Cluster) (*ssh.Client, error) {
	auth, err := r.authMethods()
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User: r.config.User,
		Auth: auth,
		// TODO(security): use known_hosts or TOFU instead of InsecureIgnoreHostKey
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	port := c.SSHPort
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(c.IPAddress, fmt.Sprintf("%d", port))

	r.logger.Info("waiting for SSH",
		slog.String("cluster_id", c.ID),
		slog.String("addr", addr),
	)

	start := time.Now()
	ticker := time.NewTicker(r.config.DialInterval)
	defer ticker.Stop()
	timeout := time.After(r.config.ConnectTimeout)

	for attempts := 1; ; attempts++ {
		client, err := ssh.Dial("tcp", addr, sshConfig)
		if err == nil {
			r.logger.Info("SSH connected",
				slog.String("cluster_id", c.ID),
				slog.Duration("wait", time.Since(start)),
			)
			return client, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for SSH on %s after %d attempts", addr, attempts)
		case <-ticker.C:
			// retry
		}
	}
}

func (r *Runner) authMethods() ([]ssh.AuthMethod, error) {
	if r.config.PrivateKeyPath != "" {
		keyPath := r.config.PrivateKeyPath
		if strings.HasPrefix(keyPath, "~/") {
			home, _ := os.UserHomeDir()
			keyPath = filepath.Join(home, keyPath[2:])
		}
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading SSH private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if r.config.Password != "" {
		return []ssh.AuthMethod{ssh.Password(r.config.Password)}, nil
	}
	return nil, fmt.Errorf("no SSH credentials configured")
}

// buildCommand renders a step as a single shell command with its environment
// prepended. Values are shell-escaped; the command itself is opaque and runs
// as written.
func buildCommand(step runner.Step) string {
	if len(step.Env) == 0 {
		return step.Command
	}

	keys := make([]string, 0, len(step.Env))
	for k := range step.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var prefix []string
	for _, k := range keys {
		prefix = append(prefix, fmt.Sprintf("%s=%s", k, shellescape.Quote(step.Env[k])))
	}
	return strings.Join(prefix, " ") + " " + step.Command
}

var _ runner.Runner = (*Runner)(nil)
