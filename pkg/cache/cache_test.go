package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()

	if _, ok := m.GetCache(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}

	if err := m.SetCache(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	val, ok := m.GetCache(ctx, "k")
	if !ok || string(val) != "v" {
		t.Errorf("GetCache = %q, %v; want %q, true", val, ok, "v")
	}
}

func TestTieredFallThrough(t *testing.T) {
	front := NewMemory(time.Minute)
	back := NewMemory(time.Minute)
	tiered := NewTiered(front, back)
	ctx := context.Background()

	if _, ok := tiered.GetCache(ctx, "k"); ok {
		t.Error("expected miss on empty tiers")
	}

	// A back-only entry is served and repopulates the front.
	if err := back.SetCache(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	val, ok := tiered.GetCache(ctx, "k")
	if !ok || string(val) != "v" {
		t.Fatalf("GetCache = %q, %v", val, ok)
	}
	if val, ok := front.GetCache(ctx, "k"); !ok || string(val) != "v" {
		t.Errorf("front not repopulated: %q, %v", val, ok)
	}
}

func TestTieredWritesBothTiers(t *testing.T) {
	front := NewMemory(time.Minute)
	back := NewMemory(time.Minute)
	tiered := NewTiered(front, back)
	ctx := context.Background()

	if err := tiered.SetCache(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	if _, ok := front.GetCache(ctx, "k"); !ok {
		t.Error("front missing written entry")
	}
	if _, ok := back.GetCache(ctx, "k"); !ok {
		t.Error("back missing written entry")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(10 * time.Millisecond)
	ctx := context.Background()

	if err := m.SetCache(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := m.GetCache(ctx, "k"); ok {
		t.Error("expected entry to expire")
	}
}
