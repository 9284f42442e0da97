package client

import (
	"fmt"
	"time"
)

// Open-Meteo returns local wall-clock times without an offset when
// timezone=auto; utc_offset_seconds gives the offset.
const (
	localMinuteLayout = "2006-01-02T15:04"
	localDateLayout   = "2006-01-02"
)

func responseZone(abbreviation string, offsetSeconds int) *time.Location {
	return time.FixedZone(abbreviation, offsetSeconds)
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	layout := localMinuteLayout
	if len(s) == len(localDateLayout) {
		layout = localDateLayout
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseLocalTimes(ss []string, loc *time.Location) ([]time.Time, error) {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		t, err := parseLocalTime(s, loc)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
