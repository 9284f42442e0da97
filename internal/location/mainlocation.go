package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// MainLocationKey holds the saved location shown on the main page. Absent
// means the device's current location.
const MainLocationKey = "main_page_location"

// MainLocation is the persisted main-page location selection.
// Get returns nil until Load has run and when no saved location is selected.
type MainLocation struct {
	store  kv.Store
	logger *zap.Logger

	mu        sync.RWMutex
	loc       *models.SavedLocation
	loaded    bool
	listeners []func()
}

func NewMainLocation(store kv.Store, logger *zap.Logger) *MainLocation {
	return &MainLocation{store: store, logger: observability.OrNop(logger)}
}

// Load reads the selection. A missing, unreadable or invalid value leaves the
// selection at current location; Loaded is true afterwards in every case.
func (m *MainLocation) Load(ctx context.Context) {
	var loc *models.SavedLocation
	raw, ok, err := m.store.Get(ctx, MainLocationKey)
	switch {
	case err != nil:
		m.logger.Error("failed to load main page location", zap.Error(err))
	case ok:
		var saved models.SavedLocation
		if err := json.Unmarshal([]byte(raw), &saved); err != nil {
			m.logger.Error("failed to decode main page location", zap.Error(err))
		} else if err := ValidateLocation(saved); err != nil {
			m.logger.Warn("ignoring invalid main page location", zap.Error(err))
		} else {
			loc = &saved
		}
	}

	m.mu.Lock()
	m.loc = loc
	m.loaded = true
	m.mu.Unlock()
	m.notify()
}

func (m *MainLocation) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Get returns a copy of the selected location, nil for current location.
func (m *MainLocation) Get() *models.SavedLocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loc == nil {
		return nil
	}
	loc := *m.loc
	return &loc
}

// Set selects loc, or current location when loc is nil. The in-memory
// selection changes even if persisting fails; the persist error is returned.
func (m *MainLocation) Set(ctx context.Context, loc *models.SavedLocation) error {
	if loc != nil {
		if err := ValidateLocation(*loc); err != nil {
			return err
		}
		c := *loc
		loc = &c
	}
	m.mu.Lock()
	m.loc = loc
	m.mu.Unlock()
	m.notify()

	var err error
	if loc == nil {
		err = m.store.Remove(ctx, MainLocationKey)
	} else {
		var b []byte
		if b, err = json.Marshal(loc); err == nil {
			err = m.store.Set(ctx, MainLocationKey, string(b))
		}
	}
	if err != nil {
		m.logger.Error("failed to persist main page location", zap.Error(err))
		return fmt.Errorf("persist main page location: %w", err)
	}
	return nil
}

// OnChange registers fn to run after Load and after every Set.
func (m *MainLocation) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *MainLocation) notify() {
	m.mu.RLock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}
