package provisioner

import (
	"errors"
	"fmt"
)

// Reason classifies why provisioning failed.
type Reason string

const (
	// ReasonCapacity means the provider has no capacity for the tier.
	ReasonCapacity Reason = "capacity"
	// ReasonQuota means an account quota blocks the launch.
	ReasonQuota Reason = "quota"
	// ReasonConfig means the launch parameters were rejected.
	ReasonConfig Reason = "config"
	// ReasonTransient covers retryable provider-side failures.
	ReasonTransient Reason = "transient"
)

// Error is a typed provisioning failure. The escalator records it and moves
// on to the next tier; it is never fatal to the whole run.
type Error struct {
	Reason   Reason
	Provider string
	Tier     string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning %s on %s failed (%s): %v", e.Tier, e.Provider, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from an error chain. Errors that are
// not provisioning failures report ReasonTransient.
func ReasonOf(err error) Reason {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ReasonTransient
}

// IsCapacity reports whether err is a capacity shortage.
func IsCapacity(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Reason == ReasonCapacity
}

// TeardownError means a cluster's release could not be confirmed. The
// resource may still be billing and needs manual cleanup; the escalator
// logs it and keeps going.
type TeardownError struct {
	ClusterID string
	Provider  string
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown of %s on %s unconfirmed: %v", e.ClusterID, e.Provider, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
