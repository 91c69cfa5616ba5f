package application

import (
	"context"
	"testing"
	"time"
)

func TestLRUResultCacheRoundTrip(t *testing.T) {
	cache := NewLRUResultCache(4, time.Minute)
	ctx := context.Background()

	first := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	stored := []UnitAvailability{{UnitID: 10, FirstReservable: &first}, {UnitID: 11, IsClosed: true}}
	cache.Store(ctx, "key", stored)

	got, ok := cache.Get(ctx, "key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got) != 2 || got[0].UnitID != 10 || !got[1].IsClosed {
		t.Fatalf("unexpected cached results %+v", got)
	}

	// Mutating the returned slice must not leak into the cache.
	got[0].UnitID = 999
	again, _ := cache.Get(ctx, "key")
	if again[0].UnitID != 10 {
		t.Fatalf("cache entry mutated through returned slice")
	}

	if _, ok := cache.Get(ctx, "other"); ok {
		t.Fatalf("unexpected hit for unknown key")
	}
}

func TestLRUResultCacheExpires(t *testing.T) {
	cache := NewLRUResultCache(4, 20*time.Millisecond)
	ctx := context.Background()

	cache.Store(ctx, "key", []UnitAvailability{{UnitID: 10, IsClosed: true}})
	if _, ok := cache.Get(ctx, "key"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := cache.Get(ctx, "key"); ok {
		t.Fatalf("expected entry expired")
	}
}
