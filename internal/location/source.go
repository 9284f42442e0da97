package location

import (
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

const (
	currentKey   = "current"
	currentLabel = "Current Location"
)

// Source is where weather is fetched for: the device's live position or a
// saved location. The zero value is the current location.
type Source struct {
	saved *models.SavedLocation
}

// Current returns the device-position source.
func Current() Source {
	return Source{}
}

// Saved returns the source for a saved location.
func Saved(loc models.SavedLocation) Source {
	return Source{saved: &loc}
}

// FromMain maps the main-location selection to a source; nil means current.
func FromMain(loc *models.SavedLocation) Source {
	if loc == nil {
		return Current()
	}
	return Saved(*loc)
}

func (s Source) IsCurrent() bool {
	return s.saved == nil
}

// Location returns the saved location, false for the current source.
func (s Source) Location() (models.SavedLocation, bool) {
	if s.saved == nil {
		return models.SavedLocation{}, false
	}
	return *s.saved, true
}

// SourceKey identifies src in cache entries: "current" or
// "saved:{id}:{lat}:{lon}". Coordinates are part of the key so a saved
// location whose coordinates change never matches its old entries.
func SourceKey(src Source) string {
	if src.saved == nil {
		return currentKey
	}
	var b strings.Builder
	b.WriteString("saved:")
	b.WriteString(strconv.FormatInt(src.saved.ID, 10))
	b.WriteByte(':')
	b.WriteString(formatCoord(src.saved.Latitude))
	b.WriteByte(':')
	b.WriteString(formatCoord(src.saved.Longitude))
	return b.String()
}

// Label is the display name for src. Admin1 is skipped when empty or when it
// repeats the name.
func Label(src Source) string {
	if src.saved == nil {
		return currentLabel
	}
	parts := []string{src.saved.Name}
	if src.saved.Admin1 != "" && src.saved.Admin1 != src.saved.Name {
		parts = append(parts, src.saved.Admin1)
	}
	parts = append(parts, src.saved.Country)
	return strings.Join(parts, ", ")
}

// Matches reports whether a cache entry written with entryKey belongs to src.
// Entries without a key predate saved locations and belong to the current source.
func Matches(src Source, entryKey string) bool {
	if entryKey == "" {
		return src.IsCurrent()
	}
	return entryKey == SourceKey(src)
}

// formatCoord uses the shortest decimal that round-trips (48.85, not 48.850000).
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
