package domain

import (
	"strings"
	"time"
)

// DateKeyLayout is the calendar-day identifier format.
const DateKeyLayout = "2006-01-02"

// DateKey maps an instant to its calendar day in loc. A nil loc means UTC.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateKeyLayout)
}

// ValidDateKey reports whether key is a well-formed YYYY-MM-DD day.
func ValidDateKey(key string) bool {
	if len(key) != len(DateKeyLayout) {
		return false
	}
	_, err := time.Parse(DateKeyLayout, key)
	return err == nil
}

// ShiftDateKey returns the key days away from key.
func ShiftDateKey(key string, days int) (string, error) {
	day, err := time.Parse(DateKeyLayout, strings.TrimSpace(key))
	if err != nil {
		return "", ErrInvalidDateKey
	}
	return day.AddDate(0, 0, days).Format(DateKeyLayout), nil
}

// DateLabel renders a key as "Mon, Jan 2". Invalid keys are returned as-is.
func DateLabel(key string) string {
	day, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return key
	}
	// Noon keeps the weekday stable regardless of the viewer's offset.
	return day.Add(12 * time.Hour).Format("Mon, Jan 2")
}
