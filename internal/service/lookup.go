package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/client"
	"github.com/kjstillabower/weather-refresh/internal/models"
	"github.com/kjstillabower/weather-refresh/internal/observability"
)

var (
	ErrInvalidCoordinates = errors.New("invalid location coordinates")
	ErrWeatherUnavailable = errors.New("could not fetch weather data for this location")
)

// LookupResult is a one-off forecast for a searched location.
type LookupResult struct {
	Weather    *models.WeatherData
	AirQuality *models.AirQualityData
}

// Lookup fetches forecasts for arbitrary coordinates without touching the
// cache or the orchestrator state.
type Lookup struct {
	weather    WeatherFetcher
	airQuality AirQualityFetcher
	units      UnitsSource
	logger     *zap.Logger
}

// NewLookup returns a Lookup that fetches in the current units.
func NewLookup(weather WeatherFetcher, airQuality AirQualityFetcher, units UnitsSource, logger *zap.Logger) *Lookup {
	return &Lookup{weather: weather, airQuality: airQuality, units: units, logger: observability.OrNop(logger)}
}

// Forecast fetches weather and air quality for lat/lon in the user's units.
// A zero latitude or longitude is rejected, as is anything out of range.
// Air-quality failures leave AirQuality nil; a missing forecast is an error.
func (l *Lookup) Forecast(ctx context.Context, lat, lon float64) (*LookupResult, error) {
	if lat == 0 || lon == 0 || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}
	units := l.units.Get()

	var (
		wg            sync.WaitGroup
		weather       *models.WeatherData
		weatherErr    error
		airQuality    *models.AirQualityData
		airQualityErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		weather, weatherErr = l.weather.FetchWeather(ctx, lat, lon, units)
	}()
	go func() {
		defer wg.Done()
		airQuality, airQualityErr = l.airQuality.FetchAirQuality(ctx, lat, lon)
	}()
	wg.Wait()

	if airQualityErr != nil {
		l.logger.Warn("lookup air quality failed", zap.Error(airQualityErr))
		airQuality = nil
	}
	if weatherErr != nil {
		l.logger.Error("lookup weather failed", zap.Error(weatherErr),
			zap.String("category", string(client.CategorizeError(weatherErr))))
		return nil, weatherErr
	}
	if weather == nil {
		return nil, ErrWeatherUnavailable
	}
	return &LookupResult{Weather: weather, AirQuality: airQuality}, nil
}
