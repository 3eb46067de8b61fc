package config

import (
	"os"
	"path/filepath"

	"github.com/subosito/gotenv"

	"github.com/EscaladeProject/escalade/pkg/runner"
	"github.com/EscaladeProject/escalade/pkg/tier"
)

// ToCatalog builds the ordered tier catalog from the TierCatalog resource.
func (c *Config) ToCatalog() (*tier.Catalog, error) {
	if c.Catalog == nil {
		return nil, configErrorf("a TierCatalog resource is required")
	}

	tiers := make([]tier.Tier, 0, len(c.Catalog.Spec.Tiers))
	for _, ts := range c.Catalog.Spec.Tiers {
		tiers = append(tiers, tier.Tier{
			Name:     ts.Name,
			CostRank: ts.CostRank,
			Launch: tier.LaunchParams{
				Image:              ts.Launch.Image,
				Region:             ts.Launch.Region,
				Spot:               ts.Launch.Spot,
				RetryUntilCapacity: ts.Launch.RetryUntilCapacity,
				MinMemoryGB:        ts.Launch.MinMemoryGB,
				Ports:              ts.Launch.Ports,
				Labels:             ts.Launch.Labels,
			},
		})
	}

	catalog, err := tier.NewCatalog(tiers)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return catalog, nil
}

// ToSteps builds the step pipeline from the TestSuite resource. Environment
// precedence, lowest to highest: envFile, suite env, step env.
func (c *Config) ToSteps() ([]runner.Step, error) {
	if c.Suite == nil {
		return nil, configErrorf("a TestSuite resource is required")
	}

	base, err := c.suiteEnv()
	if err != nil {
		return nil, err
	}

	steps := make([]runner.Step, 0, len(c.Suite.Spec.Steps))
	for _, ss := range c.Suite.Spec.Steps {
		env := make(map[string]string, len(base)+len(ss.Env))
		for k, v := range base {
			env[k] = v
		}
		for k, v := range ss.Env {
			env[k] = v
		}
		if len(env) == 0 {
			env = nil
		}
		steps = append(steps, runner.Step{
			Name:              ss.Name,
			Command:           ss.Command,
			ContinueOnFailure: ss.ContinueOnFailure,
			Env:               env,
		})
	}
	return steps, nil
}

// suiteEnv merges the suite's env file and inline env map.
func (c *Config) suiteEnv() (map[string]string, error) {
	env := make(map[string]string)

	if file := c.Suite.Spec.EnvFile; file != "" {
		path := file
		if !filepath.IsAbs(path) && c.path != "" {
			path = filepath.Join(filepath.Dir(c.path), path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, configErrorf("opening env file: %w", err)
		}
		defer f.Close()

		parsed, err := gotenv.StrictParse(f)
		if err != nil {
			return nil, configErrorf("parsing env file %s: %w", path, err)
		}
		for k, v := range parsed {
			env[k] = v
		}
	}

	for k, v := range c.Suite.Spec.Env {
		env[k] = v
	}
	return env, nil
}

// DockerSSHPassword resolves the Docker backend's SSH password from the
// environment variable named in the config.
func (c *Config) DockerSSHPassword() (string, error) {
	spec := c.Provisioner.Spec.Docker
	if spec == nil || spec.SSHPasswordEnvVar == "" {
		return "", nil
	}
	v, ok := os.LookupEnv(spec.SSHPasswordEnvVar)
	if !ok {
		return "", configErrorf("environment variable %s is not set", spec.SSHPasswordEnvVar)
	}
	return v, nil
}
