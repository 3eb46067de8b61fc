// Package docker provisions local containers as stand-ins for cloud
// instances. It gives the escalation loop a realistic target (SSH-reachable,
// memory-limited) without touching a cloud account.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/EscaladeProject/escalade/pkg/provisioner"
	"github.com/EscaladeProject/escalade/pkg/tier"
)

// Config configures the docker provisioner.
type Config struct {
	// Host overrides the docker daemon address. Empty means environment.
	Host string

	// DefaultImage is used when a tier does not name an image.
	DefaultImage string

	// SSHUser is the login user created inside the container.
	SSHUser string

	// SSHPassword enables password login for SSHUser.
	SSHPassword string

	// SSHPublicKey is authorized inside the container for key login.
	SSHPublicKey string

	// Network is the docker network to attach containers to.
	Network string

	// Logger for provisioner operations.
	Logger *slog.Logger
}

// Provisioner launches one container per tier attempt.
type Provisioner struct {
	client     *client.Client
	config     Config
	mu         sync.Mutex
	containers map[string]string // cluster ID -> container ID
	logger     *slog.Logger
}

// New creates a docker provisioner using the environment's docker daemon.
func New(cfg Config) (*Provisioner, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	if cfg.DefaultImage == "" {
		cfg.DefaultImage = "lscr.io/linuxserver/openssh-server:latest"
	}
	if cfg.SSHUser == "" {
		cfg.SSHUser = "escalade"
	}
	if cfg.Network == "" {
		cfg.Network = "bridge"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provisioner{
		client:     cli,
		config:     cfg,
		containers: make(map[string]string),
		logger:     logger,
	}, nil
}

func (p *Provisioner) Name() string { return "docker" }

func (p *Provisioner) Provision(ctx context.Context, t tier.Tier) (*provisioner.Cluster, error) {
	id := fmt.Sprintf("escalade-%s-%s", t.Name, uuid.NewString()[:8])

	image := t.Launch.Image
	if image == "" {
		image = p.config.DefaultImage
	}

	exposed := nat.PortSet{"22/tcp": struct{}{}}
	bindings := nat.PortMap{
		"22/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
	}
	for _, port := range t.Launch.Ports {
		key := nat.Port(fmt.Sprintf("%d/tcp", port))
		exposed[key] = struct{}{}
		bindings[key] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}}
	}

	labels := map[string]string{
		"escalade.managed":   "true",
		"escalade.tier":      t.Name,
		"escalade.cost_rank": fmt.Sprintf("%d", t.CostRank),
	}
	for k, v := range t.Launch.Labels {
		labels[k] = v
	}

	env := []string{fmt.Sprintf("USER_NAME=%s", p.config.SSHUser)}
	if p.config.SSHPassword != "" {
		env = append(env,
			"PASSWORD_ACCESS=true",
			fmt.Sprintf("USER_PASSWORD=%s", p.config.SSHPassword),
		)
	}
	if p.config.SSHPublicKey != "" {
		env = append(env, fmt.Sprintf("PUBLIC_KEY=%s", p.config.SSHPublicKey))
	}

	containerCfg := &container.Config{
		Image:        image,
		Env:          env,
		ExposedPorts: exposed,
		Labels:       labels,
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		AutoRemove:   true,
	}
	if t.Launch.MinMemoryGB > 0 {
		hostCfg.Resources.Memory = int64(t.Launch.MinMemoryGB) * 1024 * 1024 * 1024
	}

	resp, err := p.client.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, id)
	if err != nil {
		return nil, &provisioner.Error{
			Reason:   provisioner.ReasonConfig,
			Provider: "docker",
			Tier:     t.Name,
			Err:      fmt.Errorf("creating container: %w", err),
		}
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, &provisioner.Error{
			Reason:   provisioner.ReasonTransient,
			Provider: "docker",
			Tier:     t.Name,
			Err:      fmt.Errorf("starting container: %w", err),
		}
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		p.stopContainer(ctx, resp.ID)
		return nil, &provisioner.Error{
			Reason:   provisioner.ReasonTransient,
			Provider: "docker",
			Tier:     t.Name,
			Err:      fmt.Errorf("inspecting container: %w", err),
		}
	}

	sshPort, err := parseSSHPort(inspect.NetworkSettings.Ports["22/tcp"])
	if err != nil {
		p.stopContainer(ctx, resp.ID)
		return nil, &provisioner.Error{
			Reason:   provisioner.ReasonTransient,
			Provider: "docker",
			Tier:     t.Name,
			Err:      fmt.Errorf("container %s: %w", resp.ID[:12], err),
		}
	}

	c := &provisioner.Cluster{
		ID:        id,
		Tier:      t,
		Provider:  "docker",
		State:     provisioner.StateRunning,
		IPAddress: "127.0.0.1",
		SSHPort:   sshPort,
		Labels:    labels,
	}

	p.mu.Lock()
	p.containers[id] = resp.ID
	p.mu.Unlock()

	p.logger.Info("container provisioned",
		slog.String("cluster_id", id),
		slog.String("container_id", resp.ID[:12]),
		slog.String("tier", t.Name),
		slog.Int("ssh_port", sshPort),
	)

	return c, nil
}

func (p *Provisioner) Destroy(ctx context.Context, c *provisioner.Cluster) error {
	p.mu.Lock()
	containerID, ok := p.containers[c.ID]
	delete(p.containers, c.ID)
	p.mu.Unlock()

	if !ok {
		// Already gone: idempotent success.
		return nil
	}

	if err := p.stopContainer(ctx, containerID); err != nil {
		return &provisioner.TeardownError{
			ClusterID: c.ID,
			Provider:  "docker",
			Err:       err,
		}
	}

	c.State = provisioner.StateTerminated
	p.logger.Info("container destroyed",
		slog.String("cluster_id", c.ID),
		slog.String("container_id", containerID[:12]),
	)
	return nil
}

// parseSSHPort extracts the host port from the container's 22/tcp binding.
// A container without a usable binding cannot serve the pipeline.
func parseSSHPort(bindings []nat.PortBinding) (int, error) {
	if len(bindings) == 0 {
		return 0, fmt.Errorf("no SSH port binding")
	}
	port, err := strconv.Atoi(bindings[0].HostPort)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("malformed SSH port binding %q", bindings[0].HostPort)
	}
	return port, nil
}

func (p *Provisioner) stopContainer(ctx context.Context, containerID string) error {
	timeout := 10
	if err := p.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("stopping container: %w", err)
	}
	return nil
}

// EnsureImage pulls the default SSH image if it is not present locally.
func (p *Provisioner) EnsureImage(ctx context.Context) error {
	_, _, err := p.client.ImageInspectWithRaw(ctx, p.config.DefaultImage)
	if err == nil {
		return nil
	}

	p.logger.Info("pulling image", slog.String("image", p.config.DefaultImage))
	reader, err := p.client.ImagePull(ctx, p.config.DefaultImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image: %w", err)
	}
	defer reader.Close()
	io.Copy(io.Discard, reader)
	return nil
}

// Close releases docker client resources.
func (p *Provisioner) Close() error {
	return p.client.Close()
}

var _ provisioner.Provisioner = (*Provisioner)(nil)
