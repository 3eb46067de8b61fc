// Package tier defines the escalation catalog: an ordered list of compute
// tiers, cheapest first, that the orchestrator walks until one succeeds.
package tier

import (
	"fmt"
	"sort"
)

// LaunchParams carries the provisioning parameters for a tier. The
// orchestrator passes them through to the provisioner untouched.
type LaunchParams struct {
	// Image is the machine or container image reference.
	Image string

	// Region is the target region for the instance.
	Region string

	// Spot marks the tier as eligible for spot/preemptible capacity.
	Spot bool

	// RetryUntilCapacity keeps the provisioner retrying while capacity is
	// unavailable, bounded by the caller's context deadline.
	RetryUntilCapacity bool

	// MinMemoryGB is the minimum instance memory, in gigabytes.
	MinMemoryGB int

	// Ports are the ports to open on the instance.
	Ports []int

	// Labels are applied to the provisioned resource.
	Labels map[string]string
}

// Tier is one cost/capacity configuration in the escalation catalog.
// Immutable once loaded.
type Tier struct {
	// Name uniquely identifies the tier within a catalog.
	Name string

	// CostRank orders tiers by cost. The catalog is walked in strictly
	// increasing CostRank order.
	CostRank int

	// Launch holds the provisioning parameters for this tier.
	Launch LaunchParams
}

// Catalog is an ordered, immutable sequence of tiers sorted ascending by
// CostRank.
type Catalog struct {
	tiers []Tier
}

// NewCatalog validates and orders the given tiers. It fails if the list is
// empty, if two tiers share a name, or if two tiers share a CostRank (the
// escalation order would be ambiguous).
func NewCatalog(tiers []Tier) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier catalog is empty")
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CostRank < sorted[j].CostRank
	})

	names := make(map[string]bool, len(sorted))
	for i, t := range sorted {
		if t.Name == "" {
			return nil, fmt.Errorf("tier at cost rank %d has no name", t.CostRank)
		}
		if names[t.Name] {
			return nil, fmt.Errorf("duplicate tier name: %s", t.Name)
		}
		names[t.Name] = true

		if i > 0 && sorted[i-1].CostRank == t.CostRank {
			return nil, fmt.Errorf("tiers %q and %q share cost rank %d",
				sorted[i-1].Name, t.Name, t.CostRank)
		}
	}

	return &Catalog{tiers: sorted}, nil
}

// Tiers returns the catalog's tiers in ascending cost order. The returned
// slice is a copy; the catalog itself never changes.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Len returns the number of tiers in the catalog.
func (c *Catalog) Len() int {
	return len(c.tiers)
}

// Get returns the tier with the given name, if present.
func (c *Catalog) Get(name string) (Tier, bool) {
	for _, t := range c.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}
