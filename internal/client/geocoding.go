package client

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/validation"
)

const DefaultGeocodingURL = "https://geocoding-api.open-meteo.com"

// Search query bounds in runes.
const (
	minQueryLen = 2
	maxQueryLen = 100
)

// GeocodingClient searches locations by name.
type GeocodingClient struct {
	t      *transport
	logger *zap.Logger
}

func NewGeocodingClient(cfg Config, logger *zap.Logger) *GeocodingClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeocodingURL
	}
	t := newTransport("geocoding", cfg, logger)
	return &GeocodingClient{t: t, logger: t.logger}
}

type geocodingResponse struct {
	Results []models.GeocodingResult `json:"results"`
}

// Search returns up to count matches for name in English. No match is an
// empty slice, not an error. An invalid name fails with a validation error
// before any request is made.
func (c *GeocodingClient) Search(ctx context.Context, name string, count int) ([]models.GeocodingResult, error) {
	query, err := validation.ValidateSearchQuery(name, minQueryLen, maxQueryLen)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 10
	}
	params := map[string]string{
		"name":     query,
		"count":    strconv.Itoa(count),
		"language": "en",
		"format":   "json",
	}

	var resp geocodingResponse
	if err := c.t.get(ctx, "/v1/search", params, &resp); err != nil {
		return nil, fmt.Errorf("search locations: %w", err)
	}
	if resp.Results == nil {
		return []models.GeocodingResult{}, nil
	}
	return resp.Results, nil
}
