package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemorySessionCache_SetGetDelete(t *testing.T) {
	cache, err := NewMemorySessionCache(1000)
	if err != nil {
		t.Fatalf("NewMemorySessionCache: %v", err)
	}
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "access:d1u1", "tok", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := cache.Get(ctx, "access:d1u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || got != "tok" {
		t.Errorf("Get = %q, %v; want %q, true", got, ok, "tok")
	}

	if err := cache.Set(ctx, "access:d1u1", "tok2", time.Minute); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got, _, _ := cache.Get(ctx, "access:d1u1"); got != "tok2" {
		t.Errorf("Get after overwrite = %q, want %q", got, "tok2")
	}

	if err := cache.Delete(ctx, "access:d1u1", "never-set"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "access:d1u1"); ok {
		t.Error("Get after Delete: still present")
	}
}

func TestMemorySessionCache_Expires(t *testing.T) {
	cache, err := NewMemorySessionCache(1000)
	if err != nil {
		t.Fatalf("NewMemorySessionCache: %v", err)
	}
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Error("Get after TTL: still present")
	}
}

func TestMemorySessionCache_ClosedIsAnError(t *testing.T) {
	cache, err := NewMemorySessionCache(10)
	if err != nil {
		t.Fatalf("NewMemorySessionCache: %v", err)
	}
	cache.Close()

	if _, _, err := cache.Get(context.Background(), "k"); err == nil {
		t.Error("Get after Close: expected error")
	}
	if err := cache.Set(context.Background(), "k", "v", time.Minute); err == nil {
		t.Error("Set after Close: expected error")
	}
}

func TestMemorySessionCache_SetIsReadableUnderPressure(t *testing.T) {
	cache, err := NewMemorySessionCache(100)
	if err != nil {
		t.Fatalf("NewMemorySessionCache: %v", err)
	}
	defer cache.Close()
	ctx := context.Background()

	stored := 0
	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("access:device-%dsubject-%d", i, i)
		value := fmt.Sprintf("token-%d", i)
		if err := cache.Set(ctx, key, value, time.Minute); err != nil {
			continue
		}
		stored++
		got, ok, err := cache.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if !ok || got != value {
			t.Fatalf("Set %s returned nil but Get = %q, %v", key, got, ok)
		}
	}
	if stored == 0 {
		t.Fatal("no write was admitted")
	}
}
