package settings

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

const TimeFormatKey = "timeFormat"

type Format string

const (
	Format24h Format = "24h"
	Format12h Format = "12h"
)

func (f Format) Valid() bool {
	return f == Format24h || f == Format12h
}

// Layout returns the time.Format layout for hour labels.
func (f Format) Layout() string {
	if f == Format12h {
		return "3 PM"
	}
	return "15:04"
}

// TimeFormat is the persisted 24h/12h clock preference, 24h by default.
type TimeFormat struct {
	store  kv.Store
	logger *zap.Logger

	mu     sync.RWMutex
	format Format
	loaded bool
}

func NewTimeFormat(store kv.Store, logger *zap.Logger) *TimeFormat {
	return &TimeFormat{store: store, logger: observability.OrNop(logger), format: Format24h}
}

func (t *TimeFormat) Load(ctx context.Context) {
	format := Format24h
	v, ok, err := t.store.Get(ctx, TimeFormatKey)
	if err != nil {
		t.logger.Error("failed to load time format", zap.Error(err))
	} else if ok && Format(v).Valid() {
		format = Format(v)
	}
	t.mu.Lock()
	t.format = format
	t.loaded = true
	t.mu.Unlock()
}

func (t *TimeFormat) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

func (t *TimeFormat) Get() Format {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format
}

func (t *TimeFormat) Set(ctx context.Context, f Format) error {
	if !f.Valid() {
		return fmt.Errorf("%w: time format %q", ErrInvalidUnit, f)
	}
	t.mu.Lock()
	t.format = f
	t.mu.Unlock()
	if err := t.store.Set(ctx, TimeFormatKey, string(f)); err != nil {
		return fmt.Errorf("persist %s: %w", TimeFormatKey, err)
	}
	return nil
}
