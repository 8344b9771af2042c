package cache

import (
	"testing"

	"github.com/alekratz/sbl/internal/value"
)

func openMemCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %s", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyIsDeterministicAndDistinguishesSource(t *testing.T) {
	a := Key("1 2 +")
	b := Key("1 2 +")
	if a != b {
		t.Error("Key must be deterministic for identical source text")
	}
	if a == Key("1 2 -") {
		t.Error("Key must distinguish different source text")
	}
}

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := openMemCache(t)
	_, ok, err := c.Lookup(Key("anything"))
	if err != nil {
		t.Fatalf("Lookup failed: %s", err)
	}
	if ok {
		t.Error("expected a miss on an empty cache")
	}
}

func TestStoreThenLookupRoundTrips(t *testing.T) {
	c := openMemCache(t)
	key := Key("1 2 +")
	want := []value.Value{value.NewInt(3), value.NewStack([]value.Value{value.NewInt(1), value.NewChar('x')})}

	if err := c.Store(key, want); err != nil {
		t.Fatalf("Store failed: %s", err)
	}
	got, ok, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup failed: %s", err)
	}
	if !ok {
		t.Fatal("expected a hit after Store")
	}
	if len(got) != 2 || got[0].I != 3 || got[1].Kind != value.Stack {
		t.Fatalf("round-tripped value mismatch: %+v", got)
	}
	if len(got[1].Elts) != 2 || got[1].Elts[1].C != 'x' {
		t.Fatalf("nested Stack elements did not round-trip: %+v", got[1])
	}
}

func TestStoreOverwritesExistingKey(t *testing.T) {
	c := openMemCache(t)
	key := Key("1 2 +")
	if err := c.Store(key, []value.Value{value.NewInt(1)}); err != nil {
		t.Fatalf("Store failed: %s", err)
	}
	if err := c.Store(key, []value.Value{value.NewInt(2)}); err != nil {
		t.Fatalf("second Store failed: %s", err)
	}
	got, ok, err := c.Lookup(key)
	if err != nil || !ok {
		t.Fatalf("Lookup failed: ok=%v err=%s", ok, err)
	}
	if len(got) != 1 || got[0].I != 2 {
		t.Fatalf("expected the second Store to win, got %+v", got)
	}
}

func TestLookupIncrementsHitCounter(t *testing.T) {
	c := openMemCache(t)
	key := Key("1 2 +")
	if err := c.Store(key, []value.Value{value.NewInt(1)}); err != nil {
		t.Fatalf("Store failed: %s", err)
	}
	if _, _, err := c.Lookup(key); err != nil {
		t.Fatalf("Lookup failed: %s", err)
	}
	if _, _, err := c.Lookup(key); err != nil {
		t.Fatalf("Lookup failed: %s", err)
	}
	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %s", err)
	}
	if len(stats) != 1 || stats[0].Hits != 2 {
		t.Fatalf("expected 2 hits recorded, got %+v", stats)
	}
}

func TestStatsListsEveryEntry(t *testing.T) {
	c := openMemCache(t)
	if err := c.Store(Key("a"), []value.Value{value.NewInt(1)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(Key("b"), []value.Value{value.NewInt(2), value.NewInt(3)}); err != nil {
		t.Fatal(err)
	}
	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %s", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(stats))
	}
}

func TestClearRemovesEveryEntry(t *testing.T) {
	c := openMemCache(t)
	if err := c.Store(Key("a"), []value.Value{value.NewInt(1)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %s", err)
	}
	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %s", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no entries after Clear, got %d", len(stats))
	}
}
