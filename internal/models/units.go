package models

type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "Celsius"
	Fahrenheit TemperatureUnit = "Fahrenheit"
)

type WindSpeedUnit string

const (
	KilometersPerHour WindSpeedUnit = "km/h"
	MetersPerSecond   WindSpeedUnit = "m/s"
	MilesPerHour      WindSpeedUnit = "mph"
	Knots             WindSpeedUnit = "Knots"
)

type PrecipitationUnit string

const (
	Millimeter PrecipitationUnit = "Millimeter"
	Inch       PrecipitationUnit = "Inch"
)

// Units are the user's display unit preferences, passed to the forecast API.
type Units struct {
	Temperature   TemperatureUnit   `json:"temperatureUnit"`
	WindSpeed     WindSpeedUnit     `json:"windSpeedUnit"`
	Precipitation PrecipitationUnit `json:"precipitationUnit"`
}

// DefaultUnits returns Celsius, km/h and millimeters.
func DefaultUnits() Units {
	return Units{Temperature: Celsius, WindSpeed: KilometersPerHour, Precipitation: Millimeter}
}

// APIValue returns the Open-Meteo temperature_unit parameter.
func (u TemperatureUnit) APIValue() string {
	if u == Fahrenheit {
		return "fahrenheit"
	}
	return "celsius"
}

// APIValue returns the Open-Meteo wind_speed_unit parameter. Unknown units map to kmh.
func (u WindSpeedUnit) APIValue() string {
	switch u {
	case MetersPerSecond:
		return "ms"
	case MilesPerHour:
		return "mph"
	case Knots:
		return "kn"
	default:
		return "kmh"
	}
}

// APIValue returns the Open-Meteo precipitation_unit parameter.
func (u PrecipitationUnit) APIValue() string {
	if u == Millimeter {
		return "mm"
	}
	return "inch"
}

func (u TemperatureUnit) Valid() bool {
	return u == Celsius || u == Fahrenheit
}

func (u WindSpeedUnit) Valid() bool {
	switch u {
	case KilometersPerHour, MetersPerSecond, MilesPerHour, Knots:
		return true
	}
	return false
}

func (u PrecipitationUnit) Valid() bool {
	return u == Millimeter || u == Inch
}
