//go:build integration
// +build integration

package kv

import (
	"context"
	"testing"
)

// TestRedisStore_GetSetRemove_Integration verifies the redis backend round-trips a value.
func TestRedisStore_GetSetRemove_Integration(t *testing.T) {
	s := NewRedisStore(RedisConfig{Addr: "localhost:6379"})
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	if err := s.Set(ctx, "integration_key", "value"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "integration_key")
	if err != nil || !ok || got != "value" {
		t.Fatalf("Get() = %q, %v, %v; want value, true, nil", got, ok, err)
	}
	if err := s.Remove(ctx, "integration_key"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "integration_key"); ok {
		t.Error("Get() after Remove ok = true, want false")
	}
}
