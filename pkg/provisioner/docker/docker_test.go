package docker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"

	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/tier"
)

func TestParseSSHPort(t *testing.T) {
	tests := []struct {
		name     string
		bindings []nat.PortBinding
		want     int
		wantErr  bool
	}{
		{"valid", []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "32768"}}, 32768, false},
		{"no bindings", nil, 0, true},
		{"empty port", []nat.PortBinding{{HostIP: "127.0.0.1"}}, 0, true},
		{"garbage port", []nat.PortBinding{{HostPort: "abc"}}, 0, true},
		{"zero port", []nat.PortBinding{{HostPort: "0"}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSSHPort(tt.bindings)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected port %d, got %d", tt.want, got)
			}
		})
	}
}

func findSSHPublicKey(t *testing.T) string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519.pub"),
		filepath.Join(home, ".ssh", "id_rsa.pub"),
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}
	t.Skip("no SSH public key found")
	return ""
}

func TestDockerProvisioner_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p, err := New(Config{SSHPublicKey: findSSHPublicKey(t)})
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	defer p.Close()

	if err := p.EnsureImage(ctx); err != nil {
		t.Skipf("docker daemon not running: %v", err)
	}

	tr := tier.Tier{
		Name:     "container-small",
		CostRank: 1,
		Launch:   tier.LaunchParams{MinMemoryGB: 1},
	}

	c, err := p.Provision(ctx, tr)
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if c.State != provisioner.StateRunning {
		t.Errorf("expected running cluster, got %s", c.State)
	}
	if c.SSHPort == 0 {
		t.Error("expected an SSH port binding")
	}

	if err := p.Destroy(ctx, c); err != nil {
		t.Errorf("destroy failed: %v", err)
	}

	// Destroy must be idempotent.
	if err := p.Destroy(ctx, c); err != nil {
		t.Errorf("second destroy must be a no-op, got: %v", err)
	}
}
