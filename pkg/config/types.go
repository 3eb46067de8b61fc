package config

import "time"

const (
	APIVersion = "escalade.io/v1alpha1"

	KindTierCatalog  = "TierCatalog"
	KindTestSuite    = "TestSuite"
	KindProvisioner  = "Provisioner"
	KindOrchestrator = "Orchestrator"
)

// TypeMeta describes the API version and kind of a resource.
type TypeMeta struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
}

// ObjectMeta contains metadata that all resources have.
type ObjectMeta struct {
	Name        string            `yaml:"name" json:"name"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// TierCatalog lists the instance tiers available to an escalation run.
type TierCatalog struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta      `yaml:"metadata" json:"metadata"`
	Spec     TierCatalogSpec `yaml:"spec" json:"spec"`
}

// TierCatalogSpec holds the tier list. Order in the file is irrelevant;
// tiers are always attempted in ascending costRank order.
type TierCatalogSpec struct {
	Tiers []TierSpec `yaml:"tiers" json:"tiers"`
}

// TierSpec describes one instance tier.
type TierSpec struct {
	Name     string     `yaml:"name" json:"name"`
	CostRank int        `yaml:"costRank" json:"costRank"`
	Launch   LaunchSpec `yaml:"launch,omitempty" json:"launch,omitempty"`
}

// LaunchSpec carries the provider-facing launch parameters of a tier.
type LaunchSpec struct {
	Image              string            `yaml:"image,omitempty" json:"image,omitempty"`
	Region             string            `yaml:"region,omitempty" json:"region,omitempty"`
	Spot               bool              `yaml:"spot,omitempty" json:"spot,omitempty"`
	RetryUntilCapacity bool              `yaml:"retryUntilCapacity,omitempty" json:"retryUntilCapacity,omitempty"`
	MinMemoryGB        int               `yaml:"minMemoryGB,omitempty" json:"minMemoryGB,omitempty"`
	Ports              []int             `yaml:"ports,omitempty" json:"ports,omitempty"`
	Labels             map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// TestSuite names a step pipeline to run on each provisioned tier.
type TestSuite struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta    `yaml:"metadata" json:"metadata"`
	Spec     TestSuiteSpec `yaml:"spec" json:"spec"`
}

// TestSuiteSpec defines the pipeline and its environment.
type TestSuiteSpec struct {
	Steps []StepSpec `yaml:"steps" json:"steps"`

	// EnvFile is a dotenv-format file loaded into every step's
	// environment. Relative paths resolve against the config file.
	EnvFile string `yaml:"envFile,omitempty" json:"envFile,omitempty"`

	// Env is set on every step, overriding envFile entries.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// StepSpec describes one pipeline step.
type StepSpec struct {
	Name              string            `yaml:"name" json:"name"`
	Command           string            `yaml:"command" json:"command"`
	ContinueOnFailure bool              `yaml:"continueOnFailure,omitempty" json:"continueOnFailure,omitempty"`
	Env               map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Provisioner configures the cluster backend.
type Provisioner struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta      `yaml:"metadata" json:"metadata"`
	Spec     ProvisionerSpec `yaml:"spec" json:"spec"`
}

// ProvisionerSpec selects and configures a backend.
type ProvisionerSpec struct {
	Type string `yaml:"type" json:"type"` // docker, fake

	Docker *DockerProvisionerSpec `yaml:"docker,omitempty" json:"docker,omitempty"`
	Fake   *FakeProvisionerSpec   `yaml:"fake,omitempty" json:"fake,omitempty"`
}

// DockerProvisionerSpec configures the local Docker backend.
type DockerProvisionerSpec struct {
	// Host overrides the Docker daemon address (default: environment).
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// SSHUser is the login user for the SSH runner. Default "escalade".
	SSHUser string `yaml:"sshUser,omitempty" json:"sshUser,omitempty"`

	// SSHPasswordEnvVar names the environment variable holding the SSH
	// password. Credentials never appear in config files.
	SSHPasswordEnvVar string `yaml:"sshPasswordEnvVar,omitempty" json:"sshPasswordEnvVar,omitempty"`
}

// FakeProvisionerSpec configures the in-memory backend used for dry runs.
type FakeProvisionerSpec struct {
	// FailTiers scripts provisioning failures: tier name to reason
	// (capacity, quota, config, transient).
	FailTiers map[string]string `yaml:"failTiers,omitempty" json:"failTiers,omitempty"`
}

// Orchestrator holds run-level settings.
type Orchestrator struct {
	TypeMeta `yaml:",inline" json:",inline"`
	Metadata ObjectMeta       `yaml:"metadata" json:"metadata"`
	Spec     OrchestratorSpec `yaml:"spec" json:"spec"`
}

// OrchestratorSpec defines run behavior.
type OrchestratorSpec struct {
	// OutputRoot is the artifact root directory. Default "./escalade-runs".
	OutputRoot string `yaml:"outputRoot,omitempty" json:"outputRoot,omitempty"`

	// KeepOnSuccess leaves the winning cluster running.
	KeepOnSuccess bool `yaml:"keepOnSuccess,omitempty" json:"keepOnSuccess,omitempty"`

	// ProvisionTimeout bounds one tier's provisioning, capacity waits
	// included. Default 30m.
	ProvisionTimeout Duration `yaml:"provisionTimeout,omitempty" json:"provisionTimeout,omitempty"`

	// TeardownTimeout bounds one cluster release. Default 5m.
	TeardownTimeout Duration `yaml:"teardownTimeout,omitempty" json:"teardownTimeout,omitempty"`

	// MetricsAddress, when set, serves Prometheus metrics during the run.
	MetricsAddress string `yaml:"metricsAddress,omitempty" json:"metricsAddress,omitempty"`
}

// Duration wraps time.Duration for YAML/JSON marshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
