package cache

import (
	"time"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

// Fixed storage keys. Each domain has exactly one slot regardless of location;
// the entry's SourceKey records which location it belongs to.
const (
	WeatherKey    = "weather_cache_current_location"
	AirQualityKey = "air_quality_cache_current_location"
)

// Entry is one cached payload with the time it was written and the location
// it was fetched for. Timestamp has millisecond precision.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	// SourceKey is empty for entries written before source keys existed.
	SourceKey string
	// Units is nil when the payload does not depend on units or the entry
	// predates the field.
	Units *models.Units
}

// UnitsMatch reports whether e was fetched in u. Entries without recorded
// units match any units.
func UnitsMatch[T any](e *Entry[T], u models.Units) bool {
	return e.Units == nil || *e.Units == u
}
