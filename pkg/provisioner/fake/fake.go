// Package fake provides an in-memory provisioner for tests and local
// development. Failures are scripted per tier, including capacity windows
// that open after a number of attempts.
package fake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/EscaladeProject/escalade/pkg/backoff"
	"github.com/EscaladeProject/escalade/pkg/clock"
	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/tier"
)

// Config configures the fake provisioner.
type Config struct {
	Clock  clock.Clock  // Clock for capacity backoff. Nil means real time.
	Logger *slog.Logger // Logger for provisioning events.
}

// Provisioner simulates a cloud backend.
type Provisioner struct {
	mu       sync.Mutex
	clusters map[string]*provisioner.Cluster
	scripts  map[string]*script
	clk      clock.Clock
	logger   *slog.Logger

	provisionCalls map[string]int
	destroyCalls   map[string]int
}

type script struct {
	reason       provisioner.Reason
	failUntil    int // Attempts that fail before capacity opens. -1 means always fail.
	destroyErr   error
}

// New creates a fake provisioner.
func New(cfg Config) *Provisioner {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		clusters:       make(map[string]*provisioner.Cluster),
		scripts:        make(map[string]*script),
		clk:            clk,
		logger:         logger,
		provisionCalls: make(map[string]int),
		destroyCalls:   make(map[string]int),
	}
}

func (p *Provisioner) Name() string { return "fake" }

// FailTier scripts every provision attempt for the tier to fail with the
// given reason.
func (p *Provisioner) FailTier(tierName string, reason provisioner.Reason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[tierName] = &script{reason: reason, failUntil: -1}
}

// CapacityAfter scripts the tier to report a capacity shortage for the first
// n attempts, then succeed.
func (p *Provisioner) CapacityAfter(tierName string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[tierName] = &script{reason: provisioner.ReasonCapacity, failUntil: n}
}

// FailDestroy scripts Destroy for clusters of the tier to return the error.
func (p *Provisioner) FailDestroy(tierName string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scripts[tierName]
	if !ok {
		s = &script{failUntil: 0}
		p.scripts[tierName] = s
	}
	s.destroyErr = err
}

func (p *Provisioner) Provision(ctx context.Context, t tier.Tier) (*provisioner.Cluster, error) {
	attempt := func(ctx context.Context) (*provisioner.Cluster, error) {
		p.mu.Lock()
		p.provisionCalls[t.Name]++
		calls := p.provisionCalls[t.Name]
		s := p.scripts[t.Name]
		p.mu.Unlock()

		if s != nil && (s.failUntil < 0 || calls <= s.failUntil) {
			return nil, &provisioner.Error{
				Reason:   s.reason,
				Provider: "fake",
				Tier:     t.Name,
				Err:      fmt.Errorf("scripted failure on attempt %d", calls),
			}
		}

		c := &provisioner.Cluster{
			ID:        fmt.Sprintf("fake-%s", uuid.NewString()[:8]),
			Tier:      t,
			Provider:  "fake",
			State:     provisioner.StateRunning,
			IPAddress: "127.0.0.1",
			Labels:    t.Launch.Labels,
		}

		p.mu.Lock()
		p.clusters[c.ID] = c
		p.mu.Unlock()

		p.logger.Info("provisioned fake cluster",
			slog.String("cluster_id", c.ID),
			slog.String("tier", t.Name),
		)
		return c, nil
	}

	if !t.Launch.RetryUntilCapacity {
		return attempt(ctx)
	}

	// Capacity failures are retried until the caller's deadline; other
	// reasons surface immediately.
	policy := backoff.Capacity()
	policy.Clock = p.clk
	policy.Retryable = provisioner.IsCapacity
	return backoff.RetryValue(ctx, policy, attempt)
}

func (p *Provisioner) Destroy(ctx context.Context, c *provisioner.Cluster) error {
	p.mu.Lock()
	p.destroyCalls[c.Tier.Name]++
	_, live := p.clusters[c.ID]
	delete(p.clusters, c.ID)
	s := p.scripts[c.Tier.Name]
	p.mu.Unlock()

	if !live {
		// Already gone: idempotent success.
		return nil
	}

	if s != nil && s.destroyErr != nil {
		return &provisioner.TeardownError{
			ClusterID: c.ID,
			Provider:  "fake",
			Err:       s.destroyErr,
		}
	}

	c.State = provisioner.StateTerminated
	p.logger.Info("destroyed fake cluster",
		slog.String("cluster_id", c.ID),
		slog.String("tier", c.Tier.Name),
	)
	return nil
}

// LiveCount returns the number of clusters currently provisioned.
func (p *Provisioner) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clusters)
}

// ProvisionCalls returns the number of Provision attempts for a tier.
func (p *Provisioner) ProvisionCalls(tierName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provisionCalls[tierName]
}

// DestroyCalls returns the number of Destroy calls for a tier.
func (p *Provisioner) DestroyCalls(tierName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyCalls[tierName]
}

var _ provisioner.Provisioner = (*Provisioner)(nil)
