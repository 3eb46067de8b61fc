package provisioner

import (
	"errors"
	"fmt"
	"testing"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"capacity", &Error{Reason: ReasonCapacity, Tier: "small"}, ReasonCapacity},
		{"quota", &Error{Reason: ReasonQuota, Tier: "small"}, ReasonQuota},
		{"wrapped", fmt.Errorf("attempt failed: %w", &Error{Reason: ReasonConfig}), ReasonConfig},
		{"plain error", errors.New("boom"), ReasonTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReasonOf(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIsCapacity(t *testing.T) {
	capErr := &Error{Reason: ReasonCapacity, Tier: "small", Err: errors.New("no hosts")}
	if !IsCapacity(fmt.Errorf("provision: %w", capErr)) {
		t.Error("expected wrapped capacity error to be detected")
	}
	if IsCapacity(&Error{Reason: ReasonQuota}) {
		t.Error("quota error must not count as capacity")
	}
	if IsCapacity(errors.New("boom")) {
		t.Error("plain error must not count as capacity")
	}
}

func TestTeardownError_Unwrap(t *testing.T) {
	inner := errors.New("api timeout")
	te := &TeardownError{ClusterID: "c-1", Provider: "fake", Err: inner}
	if !errors.Is(te, inner) {
		t.Error("expected inner error in chain")
	}
}
