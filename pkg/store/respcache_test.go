package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"locex/pkg/db"
)

func newTestResponseCache(t *testing.T, ttl time.Duration) (*ResponseCache, *db.DB) {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "respcache_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return NewResponseCache(d, ttl), d
}

func TestResponseCacheRoundTrip(t *testing.T) {
	c, _ := newTestResponseCache(t, time.Hour)
	ctx := context.Background()

	if _, ok := c.GetCache(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}

	if err := c.SetCache(ctx, "sparql:list:fi", []byte(`{"results":{}}`)); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	val, ok := c.GetCache(ctx, "sparql:list:fi")
	if !ok || string(val) != `{"results":{}}` {
		t.Errorf("GetCache = %q, %v", val, ok)
	}

	// Overwrite wins.
	if err := c.SetCache(ctx, "sparql:list:fi", []byte("v2")); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	val, _ = c.GetCache(ctx, "sparql:list:fi")
	if string(val) != "v2" {
		t.Errorf("overwritten value = %q, want v2", val)
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	c, d := newTestResponseCache(t, time.Hour)
	ctx := context.Background()

	stale := sqliteTimestamp(time.Now().Add(-2 * time.Hour))
	if _, err := d.Exec(`INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)`,
		"old", []byte("x"), stale); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetCache(ctx, "old"); ok {
		t.Error("expired entry served")
	}

	// Zero TTL disables expiry.
	forever := NewResponseCache(d, 0)
	if val, ok := forever.GetCache(ctx, "old"); !ok || string(val) != "x" {
		t.Errorf("no-ttl GetCache = %q, %v", val, ok)
	}
}

func TestResponseCachePrune(t *testing.T) {
	c, d := newTestResponseCache(t, time.Hour)
	ctx := context.Background()

	stale := sqliteTimestamp(time.Now().Add(-2 * time.Hour))
	if _, err := d.Exec(`INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)`,
		"old", []byte("x"), stale); err != nil {
		t.Fatal(err)
	}
	if err := c.SetCache(ctx, "fresh", []byte("y")); err != nil {
		t.Fatal(err)
	}

	if err := d.PruneCache(time.Hour); err != nil {
		t.Fatalf("PruneCache failed: %v", err)
	}

	var remaining int
	if err := d.QueryRow(`SELECT COUNT(*) FROM cache`).Scan(&remaining); err != nil {
		t.Fatal(err)
	}
	if remaining != 1 {
		t.Errorf("rows after prune = %d, want 1", remaining)
	}
	if _, ok := c.GetCache(ctx, "fresh"); !ok {
		t.Error("prune removed a fresh entry")
	}
}
