package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

const DefaultAirQualityURL = "https://air-quality-api.open-meteo.com"

// AirQualityClient fetches the hourly air-quality forecast.
type AirQualityClient struct {
	t      *transport
	logger *zap.Logger
}

func NewAirQualityClient(cfg Config, logger *zap.Logger) *AirQualityClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAirQualityURL
	}
	t := newTransport("air_quality", cfg, logger)
	return &AirQualityClient{t: t, logger: t.logger}
}

type airQualityResponse struct {
	UTCOffsetSeconds     int    `json:"utc_offset_seconds"`
	TimezoneAbbreviation string `json:"timezone_abbreviation"`
	Hourly               *struct {
		Time        []string  `json:"time"`
		USAQI       []float64 `json:"us_aqi"`
		EuropeanAQI []float64 `json:"european_aqi"`
		PM25        []float64 `json:"pm2_5"`
		PM10        []float64 `json:"pm10"`
	} `json:"hourly"`
}

// FetchAirQuality returns US/EU AQI and particulate series for lat/lon.
// It returns nil, nil when the response has no hourly block.
func (c *AirQualityClient) FetchAirQuality(ctx context.Context, lat, lon float64) (*models.AirQualityData, error) {
	params := map[string]string{
		"latitude":      formatCoord(lat),
		"longitude":     formatCoord(lon),
		"hourly":        "us_aqi,european_aqi,pm2_5,pm10",
		"timezone":      "auto",
		"forecast_days": "7",
	}

	var resp airQualityResponse
	if err := c.t.get(ctx, "/v1/air-quality", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch air quality: %w", err)
	}
	if resp.Hourly == nil {
		c.logger.Warn("air quality response missing hourly block")
		return nil, nil
	}

	times, err := parseLocalTimes(resp.Hourly.Time, responseZone(resp.TimezoneAbbreviation, resp.UTCOffsetSeconds))
	if err != nil {
		return nil, fmt.Errorf("parse air quality hourly: %w", err)
	}
	return &models.AirQualityData{Hourly: models.AirQualityHourly{
		Time:        times,
		USAQI:       orEmpty(resp.Hourly.USAQI),
		EuropeanAQI: orEmpty(resp.Hourly.EuropeanAQI),
		PM25:        orEmpty(resp.Hourly.PM25),
		PM10:        orEmpty(resp.Hourly.PM10),
	}}, nil
}

func orEmpty(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
