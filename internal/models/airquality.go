package models

import "time"

// AirQualityData is an hourly air-quality forecast. Missing upstream values are zero.
type AirQualityData struct {
	Hourly AirQualityHourly `json:"hourly"`
}

type AirQualityHourly struct {
	Time        []time.Time `json:"time"`
	USAQI       []float64   `json:"usAqi"`
	EuropeanAQI []float64   `json:"europeanAqi"`
	PM25        []float64   `json:"pm25"`
	PM10        []float64   `json:"pm10"`
}
