// Package notify surfaces events that need operator attention, chiefly
// clusters whose teardown could not be confirmed and which may still be
// billing.
package notify

import "context"

// Event types raised by the orchestrator.
const (
	// TypeLeakedCluster means a cluster's teardown could not be confirmed
	// and the resource requires manual cleanup.
	TypeLeakedCluster = "leaked_cluster"

	// TypeRunExhausted means every tier in the catalog failed.
	TypeRunExhausted = "run_exhausted"
)

// Event is a notification raised during an orchestrator run.
type Event struct {
	Type      string
	Tier      string
	ClusterID string
	Message   string
}

// Notifier delivers events to an external channel (log, chat, pager).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
