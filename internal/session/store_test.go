package session

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "token"))

	if token, err := store.Load(ctx); err != nil || token != "" {
		t.Fatalf("fresh store should load empty, got %q err=%v", token, err)
	}

	if err := store.Save(ctx, "tok-123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	token, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("expected tok-123, got %q", token)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if token, _ := store.Load(ctx); token != "" {
		t.Fatalf("expected empty after clear, got %q", token)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear on empty store should be a no-op, got %v", err)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	store := NewRedisStore(client, "kiosk-1")
	other := NewRedisStore(client, "kiosk-2")

	if token, err := store.Load(ctx); err != nil || token != "" {
		t.Fatalf("fresh store should load empty, got %q err=%v", token, err)
	}

	if err := store.Save(ctx, "tok-redis"); err != nil {
		t.Fatalf("save: %v", err)
	}
	token, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "tok-redis" {
		t.Fatalf("expected tok-redis, got %q", token)
	}

	if token, _ := other.Load(ctx); token != "" {
		t.Fatalf("device keys must not collide, got %q", token)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if token, _ := store.Load(ctx); token != "" {
		t.Fatalf("expected empty after clear, got %q", token)
	}
}
