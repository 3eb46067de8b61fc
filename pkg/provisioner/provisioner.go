// Package provisioner defines the contract between the escalation
// orchestrator and the backend that launches and destroys compute for a tier.
package provisioner

import (
	"context"

	"github.com/EscaladeProject/escalade/pkg/tier"
)

// State describes a cluster's lifecycle.
type State string

const (
	StateProvisioning State = "provisioning"
	StateRunning      State = "running"
	StateTerminating  State = "terminating"
	StateTerminated   State = "terminated"
)

// Cluster is the handle to a provisioned compute resource. The escalator
// owns exactly one live handle at a time and passes it by reference to the
// runner and to teardown; it is never duplicated.
type Cluster struct {
	ID        string
	Tier      tier.Tier
	Provider  string
	State     State
	IPAddress string
	SSHPort   int
	Labels    map[string]string
}

// Provisioner launches and destroys clusters for tiers.
type Provisioner interface {
	Name() string

	// Provision launches a cluster for the tier. It blocks until the
	// cluster is usable or an error occurs. If the tier sets
	// RetryUntilCapacity, the provisioner keeps retrying capacity
	// failures until ctx expires. Failures are reported as *Error with a
	// reason the escalator uses to decide logging and metrics.
	Provision(ctx context.Context, t tier.Tier) (*Cluster, error)

	// Destroy releases the cluster. It is idempotent: destroying an
	// already-released cluster is not an error. It returns a
	// *TeardownError only when the release cannot be confirmed after
	// retries.
	Destroy(ctx context.Context, c *Cluster) error
}
