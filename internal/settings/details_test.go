package settings

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kjstillabower/weather-refresh/internal/kv"
)

func TestDetails_ToggleLimits(t *testing.T) {
	ctx := context.Background()
	d := NewDetails(kv.NewInMemoryStore(), nil)
	d.Load(ctx)

	if ok, _ := d.Toggle(ctx, "Humidity"); ok {
		t.Error("Toggle added a fourth detail")
	}
	if ok, _ := d.Toggle(ctx, "Temp"); !ok {
		t.Error("Toggle(Temp) did not deselect")
	}
	if ok, _ := d.Toggle(ctx, "Humidity"); !ok {
		t.Error("Toggle(Humidity) did not select")
	}
	want := []Detail{"Feels Like", "Precip Chance", "Humidity"}
	if !slices.Equal(d.Selected(), want) {
		t.Errorf("Selected() = %v, want %v", d.Selected(), want)
	}

	_, _ = d.Toggle(ctx, "Feels Like")
	_, _ = d.Toggle(ctx, "Precip Chance")
	if ok, _ := d.Toggle(ctx, "Humidity"); ok {
		t.Error("Toggle removed the last detail")
	}
	if _, err := d.Toggle(ctx, "Mood"); !errors.Is(err, ErrUnknownDetail) {
		t.Errorf("Toggle(Mood) error = %v, want ErrUnknownDetail", err)
	}
}

func TestDetails_Reorder(t *testing.T) {
	ctx := context.Background()
	d := NewDetails(kv.NewInMemoryStore(), nil)

	tests := []struct {
		detail Detail
		dir    Direction
		moved  bool
		want   []Detail
	}{
		{"Temp", Up, false, []Detail{"Temp", "Feels Like", "Precip Chance"}},
		{"Temp", Down, true, []Detail{"Feels Like", "Temp", "Precip Chance"}},
		{"Precip Chance", Down, false, []Detail{"Feels Like", "Temp", "Precip Chance"}},
		{"Precip Chance", Up, true, []Detail{"Feels Like", "Precip Chance", "Temp"}},
		{"UV Index", Up, false, []Detail{"Feels Like", "Precip Chance", "Temp"}},
	}
	for _, tt := range tests {
		moved, err := d.Reorder(ctx, tt.detail, tt.dir)
		if err != nil || moved != tt.moved {
			t.Errorf("Reorder(%s, %s) = (%v, %v), want (%v, nil)", tt.detail, tt.dir, moved, err, tt.moved)
		}
		if !slices.Equal(d.Selected(), tt.want) {
			t.Errorf("after Reorder(%s, %s): %v, want %v", tt.detail, tt.dir, d.Selected(), tt.want)
		}
	}
}

func TestDetails_LoadPersisted(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Detail
	}{
		{"valid", `["PM10","Temp"]`, []Detail{"PM10", "Temp"}},
		{"empty list", `[]`, defaultDetails},
		{"too many", `["Temp","PM10","PM2.5","Humidity"]`, defaultDetails},
		{"unknown", `["Temp","Mood"]`, defaultDetails},
		{"corrupt", `[`, defaultDetails},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := kv.NewInMemoryStore()
			_ = store.Set(ctx, SelectedDetailsKey, tt.raw)
			d := NewDetails(store, nil)
			d.Load(ctx)
			if !slices.Equal(d.Selected(), tt.want) {
				t.Errorf("Selected() = %v, want %v", d.Selected(), tt.want)
			}
		})
	}
}
