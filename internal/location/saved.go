package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/kv"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

// SavedLocationsKey holds the JSON array of saved locations.
const SavedLocationsKey = "saved_locations"

// ErrInvalidLocation is returned when a location fails validation.
var ErrInvalidLocation = errors.New("invalid location")

var validate = validator.New()

// ValidateLocation checks required fields and coordinate ranges.
func ValidateLocation(loc models.SavedLocation) error {
	if err := validate.Struct(loc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	return nil
}

// SavedLocations is the persisted list of saved locations, unique by ID.
// Read-modify-write cycles are serialized within the process.
type SavedLocations struct {
	mu     sync.Mutex
	store  kv.Store
	logger *zap.Logger
}

func NewSavedLocations(store kv.Store, logger *zap.Logger) *SavedLocations {
	return &SavedLocations{store: store, logger: observability.OrNop(logger)}
}

// List returns saved locations in the order they were added.
func (s *SavedLocations) List(ctx context.Context) ([]models.SavedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx)
}

// Save appends loc. It returns false without writing when a location with the
// same ID is already saved.
func (s *SavedLocations) Save(ctx context.Context, loc models.SavedLocation) (bool, error) {
	if err := ValidateLocation(loc); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	locs, err := s.list(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range locs {
		if l.ID == loc.ID {
			return false, nil
		}
	}
	if err := s.write(ctx, append(locs, loc)); err != nil {
		return false, err
	}
	s.logger.Info("location saved", zap.Int64("location_id", loc.ID), zap.String("name", loc.Name))
	return true, nil
}

// Remove deletes the location with id. Removing an unknown id is not an error.
func (s *SavedLocations) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locs, err := s.list(ctx)
	if err != nil {
		return err
	}
	kept := locs[:0]
	for _, l := range locs {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	return s.write(ctx, kept)
}

func (s *SavedLocations) IsSaved(ctx context.Context, id int64) (bool, error) {
	locs, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, l := range locs {
		if l.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *SavedLocations) list(ctx context.Context) ([]models.SavedLocation, error) {
	raw, ok, err := s.store.Get(ctx, SavedLocationsKey)
	if err != nil {
		return nil, fmt.Errorf("read saved locations: %w", err)
	}
	if !ok {
		return []models.SavedLocation{}, nil
	}
	var locs []models.SavedLocation
	if err := json.Unmarshal([]byte(raw), &locs); err != nil {
		return nil, fmt.Errorf("decode saved locations: %w", err)
	}
	if locs == nil {
		locs = []models.SavedLocation{}
	}
	return locs, nil
}

func (s *SavedLocations) write(ctx context.Context, locs []models.SavedLocation) error {
	b, err := json.Marshal(locs)
	if err != nil {
		return fmt.Errorf("encode saved locations: %w", err)
	}
	if err := s.store.Set(ctx, SavedLocationsKey, string(b)); err != nil {
		return fmt.Errorf("write saved locations: %w", err)
	}
	return nil
}
