package normalize

import (
	"strings"
	"time"
)

// ParseDate attempts a strict YYYY-MM-DD parse and returns fallback on any
// failure; records with unparseable dates stay importable, defaulted to the
// caller's "today". Never errors.
func ParseDate(raw string, fallback time.Time) time.Time {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return Midnight(fallback)
	}
	return Midnight(t)
}

// statement exports in the wild are overwhelmingly day-first
var lenientLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	"2.1.2006",
	"2/1/2006",
}

// ParseDateLenient tries the strict layout plus common day-first statement
// layouts before giving up and returning fallback.
func ParseDateLenient(raw string, fallback time.Time) time.Time {
	s := strings.TrimSpace(raw)
	for _, layout := range lenientLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Midnight(t)
		}
	}
	return Midnight(fallback)
}

// Midnight strips the time component to midnight UTC to match DATE semantics.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
