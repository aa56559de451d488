package orchestrator

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunFunc returns sunrise and sunset for a position on the day of t.
type SunFunc func(latitude, longitude float64, t time.Time) (rise, set time.Time)

// Sun computes sunrise and sunset with the NOAA algorithm.
func Sun(latitude, longitude float64, t time.Time) (rise, set time.Time) {
	return sunrise.SunriseSunset(latitude, longitude, t.Year(), t.Month(), t.Day())
}

// isDark reports whether t is before sunrise or after sunset. Days without
// a sunrise or sunset (polar day and night) yield zero times and count as
// dark.
func isDark(t, rise, set time.Time) bool {
	if rise.IsZero() || set.IsZero() {
		return true
	}
	return t.Before(rise) || t.After(set)
}
