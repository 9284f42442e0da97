package device

import (
	"context"
	"errors"
	"sync"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

// ErrPositionUnavailable is returned when the device cannot report a position.
var ErrPositionUnavailable = errors.New("device position unavailable")

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PermissionGate asks for foreground location permission.
type PermissionGate interface {
	RequestLocationPermission(ctx context.Context) (Permission, error)
}

// PositionProvider reports the device's current position.
type PositionProvider interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// Fixed is a PermissionGate and PositionProvider answering from configuration.
// A nil position makes CurrentPosition fail with ErrPositionUnavailable.
type Fixed struct {
	mu         sync.RWMutex
	permission Permission
	position   *models.Coordinates
}

func NewFixed(permission Permission, position *models.Coordinates) *Fixed {
	f := &Fixed{permission: permission}
	if position != nil {
		p := *position
		f.position = &p
	}
	return f
}

func (f *Fixed) RequestLocationPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.permission == PermissionGranted {
		return PermissionGranted, nil
	}
	return PermissionDenied, nil
}

func (f *Fixed) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.position == nil {
		return models.Coordinates{}, ErrPositionUnavailable
	}
	return *f.position, nil
}

func (f *Fixed) SetPermission(p Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = p
}

func (f *Fixed) SetPosition(c models.Coordinates) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = &c
}
