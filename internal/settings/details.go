package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

const SelectedDetailsKey = "selectedDetails"

// MaxDetails is how many details the forecast rows show at once.
const MaxDetails = 3

type Detail string

// KnownDetails lists every selectable detail in display order.
var KnownDetails = []Detail{
	"Temp", "Feels Like", "Precip Chance", "Precip Amount",
	"Wind Speed", "Wind Gusts", "UV Index", "Humidity",
	"Dew Point", "Cloud Cover", "Visibility", "Pressure",
	"AQI (US)", "AQI (EU)", "PM2.5", "PM10",
}

var defaultDetails = []Detail{"Temp", "Feels Like", "Precip Chance"}

var ErrUnknownDetail = errors.New("unknown detail")

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Details is the ordered selection of forecast details, between 1 and
// MaxDetails entries.
type Details struct {
	store  kv.Store
	logger *zap.Logger

	mu       sync.RWMutex
	selected []Detail
}

func NewDetails(store kv.Store, logger *zap.Logger) *Details {
	return &Details{store: store, logger: observability.OrNop(logger), selected: slices.Clone(defaultDetails)}
}

// Load adopts the persisted selection when it is a non-empty list of known
// details no longer than MaxDetails.
func (d *Details) Load(ctx context.Context) {
	raw, ok, err := d.store.Get(ctx, SelectedDetailsKey)
	if err != nil {
		d.logger.Error("failed to load selected details", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var parsed []Detail
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		d.logger.Warn("ignoring unreadable selected details", zap.Error(err))
		return
	}
	if len(parsed) == 0 || len(parsed) > MaxDetails {
		return
	}
	for _, p := range parsed {
		if !slices.Contains(KnownDetails, p) {
			d.logger.Warn("ignoring selected details with unknown entry", zap.String("detail", string(p)))
			return
		}
	}
	d.mu.Lock()
	d.selected = parsed
	d.mu.Unlock()
}

func (d *Details) Selected() []Detail {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.selected)
}

func (d *Details) IsSelected(detail Detail) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Contains(d.selected, detail)
}

// Toggle selects or deselects detail. It reports false without change when
// that would leave no detail or more than MaxDetails.
func (d *Details) Toggle(ctx context.Context, detail Detail) (bool, error) {
	if !slices.Contains(KnownDetails, detail) {
		return false, fmt.Errorf("%w: %q", ErrUnknownDetail, detail)
	}
	d.mu.Lock()
	var next []Detail
	if i := slices.Index(d.selected, detail); i >= 0 {
		if len(d.selected) == 1 {
			d.mu.Unlock()
			return false, nil
		}
		next = slices.Delete(slices.Clone(d.selected), i, i+1)
	} else {
		if len(d.selected) >= MaxDetails {
			d.mu.Unlock()
			return false, nil
		}
		next = append(slices.Clone(d.selected), detail)
	}
	d.selected = next
	d.mu.Unlock()
	return true, d.persist(ctx, next)
}

// Reorder swaps detail with its neighbour in direction. Moving past either
// end, or moving an unselected detail, is a no-op.
func (d *Details) Reorder(ctx context.Context, detail Detail, dir Direction) (bool, error) {
	d.mu.Lock()
	i := slices.Index(d.selected, detail)
	if i < 0 {
		d.mu.Unlock()
		return false, nil
	}
	j := i + 1
	if dir == Up {
		j = i - 1
	}
	if j < 0 || j >= len(d.selected) {
		d.mu.Unlock()
		return false, nil
	}
	next := slices.Clone(d.selected)
	next[i], next[j] = next[j], next[i]
	d.selected = next
	d.mu.Unlock()
	return true, d.persist(ctx, next)
}

func (d *Details) persist(ctx context.Context, selected []Detail) error {
	b, err := json.Marshal(selected)
	if err != nil {
		return fmt.Errorf("encode selected details: %w", err)
	}
	if err := d.store.Set(ctx, SelectedDetailsKey, string(b)); err != nil {
		return fmt.Errorf("persist %s: %w", SelectedDetailsKey, err)
	}
	return nil
}
