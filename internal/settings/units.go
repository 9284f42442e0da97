package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// Persisted keys, one per unit.
const (
	TemperatureUnitKey   = "temperatureUnit"
	WindSpeedUnitKey     = "windSpeedUnit"
	PrecipitationUnitKey = "precipitationUnit"
)

var ErrInvalidUnit = errors.New("invalid unit")

// Units holds the user's unit preferences. Until Load completes Get returns
// the defaults and Loaded is false.
type Units struct {
	store  kv.Store
	logger *zap.Logger

	mu     sync.RWMutex
	units  models.Units
	loaded bool

	changed listeners
}

func NewUnits(store kv.Store, logger *zap.Logger) *Units {
	return &Units{store: store, logger: observability.OrNop(logger), units: models.DefaultUnits()}
}

// Load reads the persisted units. Missing or unrecognised values keep their
// default; Loaded is true afterwards even if the store failed.
func (u *Units) Load(ctx context.Context) {
	units := models.DefaultUnits()
	if v, ok := u.read(ctx, TemperatureUnitKey); ok {
		if t := models.TemperatureUnit(v); t.Valid() {
			units.Temperature = t
		} else {
			u.logger.Warn("ignoring unknown temperature unit", zap.String("value", v))
		}
	}
	if v, ok := u.read(ctx, WindSpeedUnitKey); ok {
		if w := models.WindSpeedUnit(v); w.Valid() {
			units.WindSpeed = w
		} else {
			u.logger.Warn("ignoring unknown wind speed unit", zap.String("value", v))
		}
	}
	if v, ok := u.read(ctx, PrecipitationUnitKey); ok {
		if p := models.PrecipitationUnit(v); p.Valid() {
			units.Precipitation = p
		} else {
			u.logger.Warn("ignoring unknown precipitation unit", zap.String("value", v))
		}
	}

	u.mu.Lock()
	u.units = units
	u.loaded = true
	u.mu.Unlock()
	u.changed.notify()
}

func (u *Units) read(ctx context.Context, key string) (string, bool) {
	v, ok, err := u.store.Get(ctx, key)
	if err != nil {
		u.logger.Error("failed to load unit", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

func (u *Units) Loaded() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.loaded
}

func (u *Units) Get() models.Units {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.units
}

func (u *Units) SetTemperature(ctx context.Context, t models.TemperatureUnit) error {
	if !t.Valid() {
		return fmt.Errorf("%w: temperature %q", ErrInvalidUnit, t)
	}
	return u.apply(ctx, func(m *models.Units) { m.Temperature = t }, TemperatureUnitKey, string(t))
}

func (u *Units) SetWindSpeed(ctx context.Context, w models.WindSpeedUnit) error {
	if !w.Valid() {
		return fmt.Errorf("%w: wind speed %q", ErrInvalidUnit, w)
	}
	return u.apply(ctx, func(m *models.Units) { m.WindSpeed = w }, WindSpeedUnitKey, string(w))
}

func (u *Units) SetPrecipitation(ctx context.Context, p models.PrecipitationUnit) error {
	if !p.Valid() {
		return fmt.Errorf("%w: precipitation %q", ErrInvalidUnit, p)
	}
	return u.apply(ctx, func(m *models.Units) { m.Precipitation = p }, PrecipitationUnitKey, string(p))
}

// Set replaces all three units. Empty fields keep their current value.
func (u *Units) Set(ctx context.Context, next models.Units) error {
	if next.Temperature != "" {
		if err := u.SetTemperature(ctx, next.Temperature); err != nil {
			return err
		}
	}
	if next.WindSpeed != "" {
		if err := u.SetWindSpeed(ctx, next.WindSpeed); err != nil {
			return err
		}
	}
	if next.Precipitation != "" {
		if err := u.SetPrecipitation(ctx, next.Precipitation); err != nil {
			return err
		}
	}
	return nil
}

// OnChange registers fn to run after Load and after every unit change.
func (u *Units) OnChange(fn func()) {
	u.changed.add(fn)
}

// apply updates memory first, then persists; the last write wins.
func (u *Units) apply(ctx context.Context, mutate func(*models.Units), key, value string) error {
	u.mu.Lock()
	before := u.units
	mutate(&u.units)
	changed := before != u.units
	u.mu.Unlock()

	if err := u.store.Set(ctx, key, value); err != nil {
		u.logger.Error("failed to persist unit", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("persist %s: %w", key, err)
	}
	if changed {
		u.changed.notify()
	}
	return nil
}
