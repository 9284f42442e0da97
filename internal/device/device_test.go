package device

import (
	"context"
	"errors"
	"testing"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

func TestFixed_Permission(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		configured Permission
		want       Permission
	}{
		{PermissionGranted, PermissionGranted},
		{PermissionDenied, PermissionDenied},
		{"", PermissionDenied},
	}
	for _, tt := range tests {
		got, err := NewFixed(tt.configured, nil).RequestLocationPermission(ctx)
		if err != nil || got != tt.want {
			t.Errorf("RequestLocationPermission() with %q = (%q, %v), want %q", tt.configured, got, err, tt.want)
		}
	}
}

func TestFixed_Position(t *testing.T) {
	ctx := context.Background()
	f := NewFixed(PermissionGranted, nil)
	if _, err := f.CurrentPosition(ctx); !errors.Is(err, ErrPositionUnavailable) {
		t.Errorf("CurrentPosition() error = %v, want ErrPositionUnavailable", err)
	}
	f.SetPosition(models.Coordinates{Latitude: 51.5, Longitude: -0.12})
	got, err := f.CurrentPosition(ctx)
	if err != nil || got.Latitude != 51.5 {
		t.Errorf("CurrentPosition() = (%v, %v)", got, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.CurrentPosition(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("CurrentPosition(cancelled) error = %v", err)
	}
}
