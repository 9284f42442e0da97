package client

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

const DefaultForecastURL = "https://api.open-meteo.com"

var (
	currentVariables = []string{"weather_code", "temperature_2m", "apparent_temperature", "is_day"}
	hourlyVariables  = []string{
		"temperature_2m", "apparent_temperature", "precipitation_probability", "precipitation",
		"weather_code", "wind_speed_10m", "wind_direction_10m", "wind_gusts_10m", "uv_index",
		"relative_humidity_2m", "dew_point_2m", "cloud_cover", "visibility", "surface_pressure", "is_day",
	}
	dailyVariables = []string{
		"temperature_2m_max", "temperature_2m_min", "weather_code", "apparent_temperature_max",
		"apparent_temperature_min", "precipitation_probability_max", "uv_index_max", "precipitation_sum",
		"wind_speed_10m_max", "wind_gusts_10m_max", "wind_direction_10m_dominant",
		"relative_humidity_2m_mean", "dew_point_2m_mean", "cloud_cover_mean", "visibility_mean",
		"surface_pressure_mean", "sunrise", "sunset",
	}
)

// ForecastClient fetches current, 24-hour and 7-day forecasts.
type ForecastClient struct {
	t      *transport
	logger *zap.Logger
}

func NewForecastClient(cfg Config, logger *zap.Logger) *ForecastClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultForecastURL
	}
	t := newTransport("forecast", cfg, logger)
	return &ForecastClient{t: t, logger: t.logger}
}

type forecastResponse struct {
	UTCOffsetSeconds     int    `json:"utc_offset_seconds"`
	TimezoneAbbreviation string `json:"timezone_abbreviation"`
	Current              *struct {
		Time                string  `json:"time"`
		WeatherCode         float64 `json:"weather_code"`
		Temperature2m       float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		IsDay               float64 `json:"is_day"`
	} `json:"current"`
	Hourly *struct {
		Time                     []string  `json:"time"`
		Temperature2m            []float64 `json:"temperature_2m"`
		ApparentTemperature      []float64 `json:"apparent_temperature"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		Precipitation            []float64 `json:"precipitation"`
		WeatherCode              []float64 `json:"weather_code"`
		WindSpeed10m             []float64 `json:"wind_speed_10m"`
		WindDirection10m         []float64 `json:"wind_direction_10m"`
		WindGusts10m             []float64 `json:"wind_gusts_10m"`
		UVIndex                  []float64 `json:"uv_index"`
		RelativeHumidity2m       []float64 `json:"relative_humidity_2m"`
		DewPoint2m               []float64 `json:"dew_point_2m"`
		CloudCover               []float64 `json:"cloud_cover"`
		Visibility               []float64 `json:"visibility"`
		SurfacePressure          []float64 `json:"surface_pressure"`
		IsDay                    []float64 `json:"is_day"`
	} `json:"hourly"`
	Daily *struct {
		Time                        []string  `json:"time"`
		Temperature2mMax            []float64 `json:"temperature_2m_max"`
		Temperature2mMin            []float64 `json:"temperature_2m_min"`
		WeatherCode                 []float64 `json:"weather_code"`
		ApparentTemperatureMax      []float64 `json:"apparent_temperature_max"`
		ApparentTemperatureMin      []float64 `json:"apparent_temperature_min"`
		PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
		UVIndexMax                  []float64 `json:"uv_index_max"`
		PrecipitationSum            []float64 `json:"precipitation_sum"`
		WindSpeed10mMax             []float64 `json:"wind_speed_10m_max"`
		WindGusts10mMax             []float64 `json:"wind_gusts_10m_max"`
		WindDirection10mDominant    []float64 `json:"wind_direction_10m_dominant"`
		RelativeHumidity2mMean      []float64 `json:"relative_humidity_2m_mean"`
		DewPoint2mMean              []float64 `json:"dew_point_2m_mean"`
		CloudCoverMean              []float64 `json:"cloud_cover_mean"`
		VisibilityMean              []float64 `json:"visibility_mean"`
		SurfacePressureMean         []float64 `json:"surface_pressure_mean"`
		Sunrise                     []string  `json:"sunrise"`
		Sunset                      []string  `json:"sunset"`
	} `json:"daily"`
}

// FetchWeather returns the forecast for lat/lon in units. It returns nil, nil
// when the response lacks the current, hourly or daily block.
func (c *ForecastClient) FetchWeather(ctx context.Context, lat, lon float64, units models.Units) (*models.WeatherData, error) {
	params := map[string]string{
		"latitude":           formatCoord(lat),
		"longitude":          formatCoord(lon),
		"current":            strings.Join(currentVariables, ","),
		"hourly":             strings.Join(hourlyVariables, ","),
		"daily":              strings.Join(dailyVariables, ","),
		"timezone":           "auto",
		"forecast_days":      "7",
		"forecast_hours":     "24",
		"temperature_unit":   units.Temperature.APIValue(),
		"wind_speed_unit":    units.WindSpeed.APIValue(),
		"precipitation_unit": units.Precipitation.APIValue(),
	}

	var resp forecastResponse
	if err := c.t.get(ctx, "/v1/forecast", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	switch {
	case resp.Current == nil:
		c.logger.Warn("forecast response missing current block")
		return nil, nil
	case resp.Hourly == nil:
		c.logger.Warn("forecast response missing hourly block")
		return nil, nil
	case resp.Daily == nil:
		c.logger.Warn("forecast response missing daily block")
		return nil, nil
	}
	return mapForecast(resp)
}

func mapForecast(resp forecastResponse) (*models.WeatherData, error) {
	loc := responseZone(resp.TimezoneAbbreviation, resp.UTCOffsetSeconds)
	cur, h, d := resp.Current, resp.Hourly, resp.Daily

	currentTime, err := parseLocalTime(cur.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("parse forecast current: %w", err)
	}
	hourlyTime, err := parseLocalTimes(h.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("parse forecast hourly: %w", err)
	}
	dailyTime, err := parseLocalTimes(d.Time, loc)
	if err != nil {
		return nil, fmt.Errorf("parse forecast daily: %w", err)
	}
	sunrise, err := parseLocalTimes(d.Sunrise, loc)
	if err != nil {
		return nil, fmt.Errorf("parse forecast sunrise: %w", err)
	}
	sunset, err := parseLocalTimes(d.Sunset, loc)
	if err != nil {
		return nil, fmt.Errorf("parse forecast sunset: %w", err)
	}

	return &models.WeatherData{
		Current: models.CurrentWeather{
			Time:                currentTime,
			WeatherCode:         int(cur.WeatherCode),
			Temperature2m:       cur.Temperature2m,
			ApparentTemperature: cur.ApparentTemperature,
			IsDay:               cur.IsDay == 1,
		},
		Hourly: models.HourlyForecast{
			Time:                     hourlyTime,
			Temperature2m:            h.Temperature2m,
			ApparentTemperature:      h.ApparentTemperature,
			PrecipitationProbability: h.PrecipitationProbability,
			Precipitation:            h.Precipitation,
			WeatherCode:              h.WeatherCode,
			WindSpeed10m:             h.WindSpeed10m,
			WindDirection10m:         h.WindDirection10m,
			WindGusts10m:             h.WindGusts10m,
			UVIndex:                  h.UVIndex,
			RelativeHumidity2m:       h.RelativeHumidity2m,
			DewPoint2m:               h.DewPoint2m,
			CloudCover:               h.CloudCover,
			Visibility:               h.Visibility,
			SurfacePressure:          h.SurfacePressure,
			IsDay:                    h.IsDay,
		},
		Daily: models.DailyForecast{
			Time:                        dailyTime,
			Temperature2mMax:            d.Temperature2mMax,
			Temperature2mMin:            d.Temperature2mMin,
			WeatherCode:                 d.WeatherCode,
			ApparentTemperatureMax:      d.ApparentTemperatureMax,
			ApparentTemperatureMin:      d.ApparentTemperatureMin,
			PrecipitationProbabilityMax: d.PrecipitationProbabilityMax,
			UVIndexMax:                  d.UVIndexMax,
			PrecipitationSum:            d.PrecipitationSum,
			WindSpeed10mMax:             d.WindSpeed10mMax,
			WindGusts10mMax:             d.WindGusts10mMax,
			WindDirection10mDominant:    d.WindDirection10mDominant,
			RelativeHumidity2mMean:      d.RelativeHumidity2mMean,
			DewPoint2mMean:              d.DewPoint2mMean,
			CloudCoverMean:              d.CloudCoverMean,
			VisibilityMean:              d.VisibilityMean,
			SurfacePressureMean:         d.SurfacePressureMean,
			Sunrise:                     sunrise,
			Sunset:                      sunset,
		},
	}, nil
}
