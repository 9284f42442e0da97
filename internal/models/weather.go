package models

import "time"

// WeatherData is a forecast for one coordinate pair: the current conditions,
// the next 24 hours and the next 7 days. All instants are local wall-clock
// times of the forecast location expressed as time.Time values.
type WeatherData struct {
	Current CurrentWeather `json:"current"`
	Hourly  HourlyForecast `json:"hourly"`
	Daily   DailyForecast  `json:"daily"`
}

type CurrentWeather struct {
	Time                time.Time `json:"time"`
	WeatherCode         int       `json:"weatherCode"`
	Temperature2m       float64   `json:"temperature2m"`
	ApparentTemperature float64   `json:"apparentTemperature"`
	IsDay               bool      `json:"isDay"`
}

// HourlyForecast holds parallel series indexed like Time.
type HourlyForecast struct {
	Time                     []time.Time `json:"time"`
	Temperature2m            []float64   `json:"temperature2m"`
	ApparentTemperature      []float64   `json:"apparentTemperature"`
	PrecipitationProbability []float64   `json:"precipitationProbability"`
	Precipitation            []float64   `json:"precipitation"`
	WeatherCode              []float64   `json:"weatherCode"`
	WindSpeed10m             []float64   `json:"windSpeed10m"`
	WindDirection10m         []float64   `json:"windDirection10m"`
	WindGusts10m             []float64   `json:"windGusts10m"`
	UVIndex                  []float64   `json:"uvIndex"`
	RelativeHumidity2m       []float64   `json:"relativeHumidity2m"`
	DewPoint2m               []float64   `json:"dewPoint2m"`
	CloudCover               []float64   `json:"cloudCover"`
	Visibility               []float64   `json:"visibility"`
	SurfacePressure          []float64   `json:"surfacePressure"`
	IsDay                    []float64   `json:"isDay"`
}

// DailyForecast holds parallel series indexed like Time.
type DailyForecast struct {
	Time                        []time.Time `json:"time"`
	Temperature2mMax            []float64   `json:"temperature2mMax"`
	Temperature2mMin            []float64   `json:"temperature2mMin"`
	WeatherCode                 []float64   `json:"weatherCode"`
	ApparentTemperatureMax      []float64   `json:"apparentTemperatureMax"`
	ApparentTemperatureMin      []float64   `json:"apparentTemperatureMin"`
	PrecipitationProbabilityMax []float64   `json:"precipitationProbabilityMax"`
	UVIndexMax                  []float64   `json:"uvIndexMax"`
	PrecipitationSum            []float64   `json:"precipitationSum"`
	WindSpeed10mMax             []float64   `json:"windSpeed10mMax"`
	WindGusts10mMax             []float64   `json:"windGusts10mMax"`
	WindDirection10mDominant    []float64   `json:"windDirection10mDominant"`
	RelativeHumidity2mMean      []float64   `json:"relativeHumidity2mMean"`
	DewPoint2mMean              []float64   `json:"dewPoint2mMean"`
	CloudCoverMean              []float64   `json:"cloudCoverMean"`
	VisibilityMean              []float64   `json:"visibilityMean"`
	SurfacePressureMean         []float64   `json:"surfacePressureMean"`
	Sunrise                     []time.Time `json:"sunrise"`
	Sunset                      []time.Time `json:"sunset"`
}
