package cache

import (
	"path/filepath"
	"testing"

	"bf/internal/optimizer"
	"bf/internal/parser"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bf-cache.sqlite")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupMissReturnsFalse(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Lookup(Digest("++++"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Error("expected a miss on an empty cache")
	}
}

func TestStoreThenLookupRoundTrips(t *testing.T) {
	c := openTestCache(t)
	src := "+++[->+<]"
	digest := Digest(src)

	instrs, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ops := optimizer.Optimize(instrs)

	if err := c.Store(digest, ops, "rendered form"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok, err := c.Lookup(digest)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Store")
	}
	if len(got) != len(ops) {
		t.Fatalf("got %d top-level ops, want %d", len(got), len(ops))
	}
	for i := range ops {
		if got[i].Kind != ops[i].Kind || got[i].Count != ops[i].Count {
			t.Errorf("op %d = %+v, want %+v", i, got[i], ops[i])
		}
	}
}

func TestStoreOverwritesPriorEntry(t *testing.T) {
	c := openTestCache(t)
	src := "+++"
	digest := Digest(src)
	instrs, _ := parser.New(src).Parse()
	ops := optimizer.Optimize(instrs)

	if err := c.Store(digest, ops, "first"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := c.Store(digest, ops, "second"); err != nil {
		t.Fatalf("Store again: %v", err)
	}

	_, ok, err := c.Lookup(digest)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after overwriting Store")
	}
}

func TestDigestIsStableAndContentAddressed(t *testing.T) {
	if Digest("+++") != Digest("+++") {
		t.Error("Digest should be deterministic for identical source")
	}
	if Digest("+++") == Digest("---") {
		t.Error("Digest should differ for different source")
	}
}
