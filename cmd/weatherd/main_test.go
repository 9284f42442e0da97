package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjstillabower/weather-refresh/internal/config"
)

func TestOpenStore(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
		wantPing bool
		wantErr  bool
	}{
		{name: "in memory", cfg: config.Config{StorageBackend: "in_memory"}, wantName: "in_memory"},
		{name: "default", cfg: config.Config{}, wantName: "in_memory"},
		{name: "file", cfg: config.Config{StorageBackend: "file", StoragePath: filepath.Join(t.TempDir(), "state.json")}, wantName: "file"},
		{name: "memcached", cfg: config.Config{StorageBackend: "memcached", MemcachedAddrs: "localhost:11211", MemcachedTimeout: time.Second}, wantName: "memcached", wantPing: true},
		{name: "redis", cfg: config.Config{StorageBackend: "redis", RedisAddr: "localhost:6379"}, wantName: "redis", wantPing: true},
		{name: "unknown", cfg: config.Config{StorageBackend: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			s, err := openStore(context.Background(), &cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("openStore() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			if s.close != nil {
				defer s.close()
			}
			if s.name != tt.wantName {
				t.Errorf("name = %q, want %q", s.name, tt.wantName)
			}
			if (s.ping != nil) != tt.wantPing {
				t.Errorf("ping set = %v, want %v", s.ping != nil, tt.wantPing)
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	cfg := &config.Config{
		RetryAttempts:           4,
		RetryBaseDelay:          50 * time.Millisecond,
		RetryMaxDelay:           time.Second,
		BreakerMaxRequests:      2,
		BreakerInterval:         time.Minute,
		BreakerTimeout:          30 * time.Second,
		BreakerFailureThreshold: 5,
	}
	api := config.APIConfig{URL: "https://air-quality-api.open-meteo.com/v1/air-quality", Timeout: 3 * time.Second}

	got := clientConfig(cfg, api)
	if got.BaseURL != api.URL || got.Timeout != api.Timeout {
		t.Errorf("endpoint = %q %v", got.BaseURL, got.Timeout)
	}
	if got.RetryAttempts != 4 || got.RetryBaseDelay != 50*time.Millisecond || got.RetryMaxDelay != time.Second {
		t.Errorf("retry = %+v", got)
	}
	if got.Breaker.FailureThreshold != 5 || got.Breaker.MaxRequests != 2 || got.Breaker.Timeout != 30*time.Second {
		t.Errorf("breaker = %+v", got.Breaker)
	}
}
