package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/client"
	"github.com/kjstillabower/weather-refresh/internal/models"
)

func TestLookup_Forecast(t *testing.T) {
	imperial := models.Units{Temperature: models.Fahrenheit, WindSpeed: models.Knots, Precipitation: models.Inch}

	tests := []struct {
		name       string
		lat, lon   float64
		weather    *models.WeatherData
		weatherErr error
		air        *models.AirQualityData
		airErr     error
		wantErr    error
		wantAir    bool
		wantCalls  int
	}{
		{name: "both succeed", lat: 48.85, lon: 2.35, weather: weatherAt(10), air: airAt(20), wantAir: true, wantCalls: 1},
		{name: "air quality fails", lat: 48.85, lon: 2.35, weather: weatherAt(10), airErr: client.ErrUpstreamFailure, wantCalls: 1},
		{name: "weather fails", lat: 48.85, lon: 2.35, weatherErr: client.ErrRateLimited, air: airAt(20), wantErr: client.ErrRateLimited, wantCalls: 1},
		{name: "weather incomplete", lat: 48.85, lon: 2.35, air: airAt(20), wantErr: ErrWeatherUnavailable, wantCalls: 1},
		{name: "zero latitude", lat: 0, lon: 2.35, wantErr: ErrInvalidCoordinates},
		{name: "zero longitude", lat: 51.48, lon: 0, wantErr: ErrInvalidCoordinates},
		{name: "latitude out of range", lat: 91, lon: 2.35, wantErr: ErrInvalidCoordinates},
		{name: "longitude out of range", lat: 10, lon: -181, wantErr: ErrInvalidCoordinates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWeather{data: tt.weather, err: tt.weatherErr}
			a := &fakeAirQuality{data: tt.air, err: tt.airErr}
			l := NewLookup(w, a, &fakeUnits{loaded: true, units: imperial}, zap.NewNop())

			res, err := l.Forecast(context.Background(), tt.lat, tt.lon)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Forecast() error = %v, want %v", err, tt.wantErr)
				}
				if res != nil {
					t.Errorf("Forecast() result = %+v, want nil", res)
				}
			} else {
				if err != nil {
					t.Fatalf("Forecast() error = %v", err)
				}
				if res.Weather != tt.weather {
					t.Error("Weather not returned")
				}
				if (res.AirQuality != nil) != tt.wantAir {
					t.Errorf("AirQuality = %+v, want present=%v", res.AirQuality, tt.wantAir)
				}
			}

			if got := w.callCount(); got != tt.wantCalls {
				t.Fatalf("weather calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantCalls > 0 {
				call := w.lastCall()
				if call.lat != tt.lat || call.lon != tt.lon || call.units != imperial {
					t.Errorf("FetchWeather(%v, %v, %+v)", call.lat, call.lon, call.units)
				}
			}
		})
	}
}
