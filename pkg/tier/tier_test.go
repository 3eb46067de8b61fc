package tier

import "testing"

func TestNewCatalog_SortsByCostRank(t *testing.T) {
	c, err := NewCatalog([]Tier{
		{Name: "large", CostRank: 3},
		{Name: "small", CostRank: 1},
		{Name: "medium", CostRank: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tiers := c.Tiers()
	want := []string{"small", "medium", "large"}
	for i, name := range want {
		if tiers[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, tiers[i].Name)
		}
	}
}

func TestNewCatalog_Empty(t *testing.T) {
	if _, err := NewCatalog(nil); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestNewCatalog_DuplicateCostRank(t *testing.T) {
	_, err := NewCatalog([]Tier{
		{Name: "a", CostRank: 1},
		{Name: "b", CostRank: 1},
	})
	if err == nil {
		t.Error("expected error for duplicate cost rank")
	}
}

func TestNewCatalog_DuplicateName(t *testing.T) {
	_, err := NewCatalog([]Tier{
		{Name: "a", CostRank: 1},
		{Name: "a", CostRank: 2},
	})
	if err == nil {
		t.Error("expected error for duplicate name")
	}
}

func TestNewCatalog_UnnamedTier(t *testing.T) {
	_, err := NewCatalog([]Tier{{CostRank: 1}})
	if err == nil {
		t.Error("expected error for unnamed tier")
	}
}

func TestCatalog_TiersIsRestartable(t *testing.T) {
	c, err := NewCatalog([]Tier{
		{Name: "small", CostRank: 1},
		{Name: "large", CostRank: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := c.Tiers()
	second := c.Tiers()
	if len(first) != len(second) {
		t.Fatalf("iterations differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Errorf("position %d: %s vs %s", i, first[i].Name, second[i].Name)
		}
	}

	// Mutating the returned slice must not affect the catalog.
	first[0].Name = "mutated"
	if c.Tiers()[0].Name != "small" {
		t.Error("catalog was mutated through returned slice")
	}
}

func TestCatalog_Get(t *testing.T) {
	c, err := NewCatalog([]Tier{
		{Name: "small", CostRank: 1},
		{Name: "large", CostRank: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := c.Get("large")
	if !ok || got.CostRank != 2 {
		t.Errorf("expected large with cost rank 2, got %+v (ok=%v)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected missing tier to not be found")
	}
}
