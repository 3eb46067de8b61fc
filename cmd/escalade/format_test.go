package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/EscaladeProject/escalade/pkg/config"
	"github.com/EscaladeProject/escalade/pkg/escalator"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exhausted", escalator.ErrExhausted, exitExhausted},
		{"wrapped exhausted", fmt.Errorf("run: %w", escalator.ErrExhausted), exitExhausted},
		{"config error", &config.Error{Err: errors.New("bad yaml")}, exitConfig},
		{"infra error", errors.New("docker daemon unreachable"), exitInfra},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "-" {
		t.Errorf("expected - for zero duration, got %q", got)
	}
	if got := formatDuration(1500 * time.Millisecond); got != "1.5s" {
		t.Errorf("expected 1.5s, got %q", got)
	}
}

func TestBuildVersionInfo(t *testing.T) {
	info := buildVersionInfo()
	if info.Version == "" || info.GoVersion == "" || info.Platform == "" {
		t.Errorf("incomplete version info: %+v", info)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("expected os/arch platform, got %q", info.Platform)
	}
}

func TestOrDash(t *testing.T) {
	if got := orDash(""); got != "-" {
		t.Errorf("expected -, got %q", got)
	}
	if got := orDash("install"); got != "install" {
		t.Errorf("expected install, got %q", got)
	}
}
