package location

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kjstillabower/weather-refresh/internal/kv"
)

func TestMainLocation_LoadEmpty(t *testing.T) {
	m := NewMainLocation(kv.NewInMemoryStore(), nil)
	if m.Loaded() {
		t.Fatal("Loaded() = true before Load")
	}
	m.Load(context.Background())
	if !m.Loaded() || m.Get() != nil {
		t.Errorf("after Load: Loaded=%v Get=%v, want true, nil", m.Loaded(), m.Get())
	}
}

func TestMainLocation_SetPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	store := kv.NewInMemoryStore()
	m := NewMainLocation(store, nil)
	m.Load(ctx)

	if err := m.Set(ctx, &paris); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reloaded := NewMainLocation(store, nil)
	reloaded.Load(ctx)
	got := reloaded.Get()
	if got == nil || got.ID != paris.ID || got.Latitude != paris.Latitude {
		t.Fatalf("reloaded Get() = %+v, want paris", got)
	}

	if err := m.Set(ctx, nil); err != nil {
		t.Fatalf("Set(nil) error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, MainLocationKey); ok {
		t.Error("Set(nil) should remove the persisted selection")
	}
}

func TestMainLocation_LoadIgnoresCorruptValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"invalid location", `{"id":0,"name":"","country":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := kv.NewInMemoryStore()
			_ = store.Set(ctx, MainLocationKey, tt.raw)
			m := NewMainLocation(store, nil)
			m.Load(ctx)
			if !m.Loaded() || m.Get() != nil {
				t.Errorf("Loaded=%v Get=%v, want true, nil", m.Loaded(), m.Get())
			}
		})
	}
}

func TestMainLocation_OnChange(t *testing.T) {
	ctx := context.Background()
	m := NewMainLocation(kv.NewInMemoryStore(), nil)
	calls := 0
	m.OnChange(func() { calls++ })

	m.Load(ctx)
	_ = m.Set(ctx, &paris)
	_ = m.Set(ctx, nil)
	if calls != 3 {
		t.Errorf("listener calls = %d, want 3", calls)
	}
}

func TestMainLocation_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMainLocation(kv.NewInMemoryStore(), nil)
	_ = m.Set(ctx, &paris)
	got := m.Get()
	got.Name = "changed"
	if m.Get().Name != paris.Name {
		t.Error("Get() exposed internal state")
	}
	raw, _ := json.Marshal(m.Get())
	if len(raw) == 0 {
		t.Error("selection not serializable")
	}
}
