// Package config loads Escalade's YAML resources. A config file holds one or
// more documents (separated by ---): a TierCatalog, a TestSuite, a
// Provisioner, and an optional Orchestrator.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Error marks a configuration problem. The CLI maps it to its own exit code
// so operators can tell bad input from infrastructure failures.
type Error struct {
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// Config holds all loaded configuration resources.
type Config struct {
	Catalog      *TierCatalog
	Suite        *TestSuite
	Provisioner  *Provisioner
	Orchestrator *Orchestrator

	// path is the config file's location, for resolving relative paths.
	path string
}

// Load reads configuration from a file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse parses configuration from YAML bytes.
// Supports multi-document YAML (separated by ---).
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))

	for {
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, configErrorf("decoding YAML document: %w", err)
		}

		if raw == nil {
			continue
		}

		kind, _ := raw["kind"].(string)
		apiVersion, _ := raw["apiVersion"].(string)

		if apiVersion != "" && apiVersion != APIVersion {
			return nil, configErrorf("unsupported apiVersion: %s (expected %s)", apiVersion, APIVersion)
		}

		docBytes, err := yaml.Marshal(raw)
		if err != nil {
			return nil, configErrorf("re-marshaling document: %w", err)
		}

		switch kind {
		case KindTierCatalog:
			var tc TierCatalog
			if err := yaml.Unmarshal(docBytes, &tc); err != nil {
				return nil, configErrorf("parsing TierCatalog: %w", err)
			}
			if cfg.Catalog != nil {
				return nil, configErrorf("multiple TierCatalog resources found")
			}
			cfg.Catalog = &tc

		case KindTestSuite:
			var ts TestSuite
			if err := yaml.Unmarshal(docBytes, &ts); err != nil {
				return nil, configErrorf("parsing TestSuite: %w", err)
			}
			if cfg.Suite != nil {
				return nil, configErrorf("multiple TestSuite resources found")
			}
			cfg.Suite = &ts

		case KindProvisioner:
			var p Provisioner
			if err := yaml.Unmarshal(docBytes, &p); err != nil {
				return nil, configErrorf("parsing Provisioner: %w", err)
			}
			if cfg.Provisioner != nil {
				return nil, configErrorf("multiple Provisioner resources found")
			}
			cfg.Provisioner = &p

		case KindOrchestrator:
			var o Orchestrator
			if err := yaml.Unmarshal(docBytes, &o); err != nil {
				return nil, configErrorf("parsing Orchestrator: %w", err)
			}
			if cfg.Orchestrator != nil {
				return nil, configErrorf("multiple Orchestrator resources found")
			}
			cfg.Orchestrator = &o

		case "":
			return nil, configErrorf("document missing 'kind' field")

		default:
			return nil, configErrorf("unknown kind: %s", kind)
		}
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Catalog == nil {
		return configErrorf("a TierCatalog resource is required")
	}
	if len(c.Catalog.Spec.Tiers) == 0 {
		return configErrorf("TierCatalog %q has no tiers", c.Catalog.Metadata.Name)
	}
	names := make(map[string]bool)
	ranks := make(map[int]string)
	for _, t := range c.Catalog.Spec.Tiers {
		if t.Name == "" {
			return configErrorf("TierCatalog %q: every tier needs a name", c.Catalog.Metadata.Name)
		}
		if names[t.Name] {
			return configErrorf("TierCatalog %q: duplicate tier name %q", c.Catalog.Metadata.Name, t.Name)
		}
		names[t.Name] = true
		if other, dup := ranks[t.CostRank]; dup {
			return configErrorf("TierCatalog %q: tiers %q and %q share costRank %d",
				c.Catalog.Metadata.Name, other, t.Name, t.CostRank)
		}
		ranks[t.CostRank] = t.Name
	}

	if c.Suite == nil {
		return configErrorf("a TestSuite resource is required")
	}
	if c.Suite.Metadata.Name == "" {
		return configErrorf("TestSuite must have metadata.name")
	}
	if len(c.Suite.Spec.Steps) == 0 {
		return configErrorf("TestSuite %q has no steps", c.Suite.Metadata.Name)
	}
	stepNames := make(map[string]bool)
	for _, s := range c.Suite.Spec.Steps {
		if s.Name == "" {
			return configErrorf("TestSuite %q: every step needs a name", c.Suite.Metadata.Name)
		}
		if s.Command == "" {
			return configErrorf("TestSuite %q: step %q has no command", c.Suite.Metadata.Name, s.Name)
		}
		if stepNames[s.Name] {
			return configErrorf("TestSuite %q: duplicate step name %q", c.Suite.Metadata.Name, s.Name)
		}
		stepNames[s.Name] = true
	}

	if c.Provisioner == nil {
		return configErrorf("a Provisioner resource is required")
	}
	switch c.Provisioner.Spec.Type {
	case "docker", "fake":
	case "":
		return configErrorf("Provisioner %q must have spec.type", c.Provisioner.Metadata.Name)
	default:
		return configErrorf("Provisioner %q has unknown type %q", c.Provisioner.Metadata.Name, c.Provisioner.Spec.Type)
	}
	if c.Provisioner.Spec.Fake != nil {
		for tierName, reason := range c.Provisioner.Spec.Fake.FailTiers {
			switch reason {
			case "capacity", "quota", "config", "transient":
			default:
				return configErrorf("Provisioner %q: tier %q has unknown failure reason %q",
					c.Provisioner.Metadata.Name, tierName, reason)
			}
		}
	}

	return nil
}

// Defaults applies default values to the configuration.
func (c *Config) Defaults() {
	if c.Orchestrator == nil {
		c.Orchestrator = &Orchestrator{
			TypeMeta: TypeMeta{APIVersion: APIVersion, Kind: KindOrchestrator},
		}
	}
	spec := &c.Orchestrator.Spec
	if spec.OutputRoot == "" {
		spec.OutputRoot = "./escalade-runs"
	}
	if spec.ProvisionTimeout == 0 {
		spec.ProvisionTimeout = Duration(30 * time.Minute)
	}
	if spec.TeardownTimeout == 0 {
		spec.TeardownTimeout = Duration(5 * time.Minute)
	}
	if c.Provisioner != nil && c.Provisioner.Spec.Type == "docker" {
		if c.Provisioner.Spec.Docker == nil {
			c.Provisioner.Spec.Docker = &DockerProvisionerSpec{}
		}
		if c.Provisioner.Spec.Docker.SSHUser == "" {
			c.Provisioner.Spec.Docker.SSHUser = "escalade"
		}
	}
}

// UnmarshalYAML implements custom YAML unmarshaling for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements custom YAML marshaling for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	if d == 0 {
		return "", nil
	}
	return time.Duration(d).String(), nil
}
