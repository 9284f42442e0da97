package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/weather-refresh/internal/models"
)

// SchemaVersion is written with every entry. Entries without a version are
// read as version 1; newer versions are treated as a miss.
const SchemaVersion = 1

var errUnsupportedSchema = errors.New("unsupported cache schema version")

// Codec converts a domain payload to and from its persisted JSON form.
// Persisted time fields are RFC 3339 strings and every one of them must be
// parsed back into a time.Time on decode.
type Codec[T any] interface {
	Domain() string
	Key() string
	EncodeData(data T) (json.RawMessage, error)
	DecodeData(raw json.RawMessage) (T, error)
}

// envelope is the persisted slot shape. Timestamp is epoch milliseconds.
type envelope struct {
	Data          json.RawMessage `json:"data"`
	Timestamp     int64           `json:"timestamp"`
	Latitude      float64         `json:"latitude"`
	Longitude     float64         `json:"longitude"`
	SourceKey     string          `json:"sourceKey,omitempty"`
	Units         *models.Units   `json:"units,omitempty"`
	SchemaVersion int             `json:"schemaVersion,omitempty"`
}

func encodeEntry[T any](c Codec[T], e Entry[T]) (string, error) {
	data, err := c.EncodeData(e.Data)
	if err != nil {
		return "", fmt.Errorf("encode %s data: %w", c.Domain(), err)
	}
	b, err := json.Marshal(envelope{
		Data:          data,
		Timestamp:     e.Timestamp.UnixMilli(),
		Latitude:      e.Latitude,
		Longitude:     e.Longitude,
		SourceKey:     e.SourceKey,
		Units:         e.Units,
		SchemaVersion: SchemaVersion,
	})
	if err != nil {
		return "", fmt.Errorf("encode %s entry: %w", c.Domain(), err)
	}
	return string(b), nil
}

func decodeEntry[T any](c Codec[T], raw string) (*Entry[T], error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode %s entry: %w", c.Domain(), err)
	}
	if env.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", errUnsupportedSchema, env.SchemaVersion)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("decode %s entry: missing data", c.Domain())
	}
	data, err := c.DecodeData(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", c.Domain(), err)
	}
	return &Entry[T]{
		Data:      data,
		Timestamp: time.UnixMilli(env.Timestamp),
		Latitude:  env.Latitude,
		Longitude: env.Longitude,
		SourceKey: env.SourceKey,
		Units:     env.Units,
	}, nil
}

// WeatherCodec persists models.WeatherData. Time fields: current.time,
// hourly.time, daily.time, daily.sunrise, daily.sunset.
type WeatherCodec struct{}

type wireCurrent struct {
	models.CurrentWeather
	Time string `json:"time"`
}

type wireHourly struct {
	models.HourlyForecast
	Time []string `json:"time"`
}

type wireDaily struct {
	models.DailyForecast
	Time    []string `json:"time"`
	Sunrise []string `json:"sunrise"`
	Sunset  []string `json:"sunset"`
}

type wireWeather struct {
	Current wireCurrent `json:"current"`
	Hourly  wireHourly  `json:"hourly"`
	Daily   wireDaily   `json:"daily"`
}

func (WeatherCodec) Domain() string { return "weather" }
func (WeatherCodec) Key() string    { return WeatherKey }

func (WeatherCodec) EncodeData(d models.WeatherData) (json.RawMessage, error) {
	w := wireWeather{
		Current: wireCurrent{CurrentWeather: d.Current, Time: formatTime(d.Current.Time)},
		Hourly:  wireHourly{HourlyForecast: d.Hourly, Time: formatTimes(d.Hourly.Time)},
		Daily: wireDaily{
			DailyForecast: d.Daily,
			Time:          formatTimes(d.Daily.Time),
			Sunrise:       formatTimes(d.Daily.Sunrise),
			Sunset:        formatTimes(d.Daily.Sunset),
		},
	}
	return json.Marshal(w)
}

func (WeatherCodec) DecodeData(raw json.RawMessage) (models.WeatherData, error) {
	var w wireWeather
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.WeatherData{}, err
	}
	d := models.WeatherData{
		Current: w.Current.CurrentWeather,
		Hourly:  w.Hourly.HourlyForecast,
		Daily:   w.Daily.DailyForecast,
	}
	var err error
	if d.Current.Time, err = parseTime(w.Current.Time); err != nil {
		return models.WeatherData{}, fmt.Errorf("current.time: %w", err)
	}
	if d.Hourly.Time, err = parseTimes(w.Hourly.Time); err != nil {
		return models.WeatherData{}, fmt.Errorf("hourly.time: %w", err)
	}
	if d.Daily.Time, err = parseTimes(w.Daily.Time); err != nil {
		return models.WeatherData{}, fmt.Errorf("daily.time: %w", err)
	}
	if d.Daily.Sunrise, err = parseTimes(w.Daily.Sunrise); err != nil {
		return models.WeatherData{}, fmt.Errorf("daily.sunrise: %w", err)
	}
	if d.Daily.Sunset, err = parseTimes(w.Daily.Sunset); err != nil {
		return models.WeatherData{}, fmt.Errorf("daily.sunset: %w", err)
	}
	return d, nil
}

// AirQualityCodec persists models.AirQualityData. Time fields: hourly.time.
type AirQualityCodec struct{}

type wireAirQualityHourly struct {
	models.AirQualityHourly
	Time []string `json:"time"`
}

type wireAirQuality struct {
	Hourly wireAirQualityHourly `json:"hourly"`
}

func (AirQualityCodec) Domain() string { return "air_quality" }
func (AirQualityCodec) Key() string    { return AirQualityKey }

func (AirQualityCodec) EncodeData(d models.AirQualityData) (json.RawMessage, error) {
	return json.Marshal(wireAirQuality{
		Hourly: wireAirQualityHourly{AirQualityHourly: d.Hourly, Time: formatTimes(d.Hourly.Time)},
	})
}

func (AirQualityCodec) DecodeData(raw json.RawMessage) (models.AirQualityData, error) {
	var w wireAirQuality
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.AirQualityData{}, err
	}
	d := models.AirQualityData{Hourly: w.Hourly.AirQualityHourly}
	var err error
	if d.Hourly.Time, err = parseTimes(w.Hourly.Time); err != nil {
		return models.AirQualityData{}, fmt.Errorf("hourly.time: %w", err)
	}
	return d, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func formatTimes(ts []time.Time) []string {
	if ts == nil {
		return nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = formatTime(t)
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimes(ss []string) ([]time.Time, error) {
	if ss == nil {
		return nil, nil
	}
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		t, err := parseTime(s)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}
