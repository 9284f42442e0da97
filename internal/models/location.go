package models

// SavedLocation is a location the user kept from a search result. ID is the
// geocoding result id and is unique across saved locations.
type SavedLocation struct {
	ID        int64   `json:"id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Coordinates is a position reported by the device.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeocodingResult is one match returned by a location search.
type GeocodingResult struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Elevation   float64 `json:"elevation"`
	FeatureCode string  `json:"feature_code"`
	CountryCode string  `json:"country_code"`
	Timezone    string  `json:"timezone"`
	Population  int64   `json:"population,omitempty"`
	Country     string  `json:"country"`
	Admin1      string  `json:"admin1,omitempty"`
	Admin2      string  `json:"admin2,omitempty"`
}

// ToSavedLocation keeps the fields a saved location persists.
func (g GeocodingResult) ToSavedLocation() SavedLocation {
	return SavedLocation{
		ID:        g.ID,
		Name:      g.Name,
		Admin1:    g.Admin1,
		Country:   g.Country,
		Latitude:  g.Latitude,
		Longitude: g.Longitude,
	}
}
