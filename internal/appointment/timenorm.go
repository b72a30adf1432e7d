package appointment

import (
	"fmt"
	"strings"
	"time"
)

// Normalize converts t to its canonical UTC instant. Values already in UTC
// pass through; values with an offset are converted.
func Normalize(t time.Time) time.Time {
	return t.UTC()
}

// Timestamps without zone information are taken as already canonical.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseInstant parses a boundary timestamp into a canonical instant.
// RFC 3339 values keep their explicit offset; naive values are read as UTC.
func ParseInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validationError("timestamp is required")
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return Normalize(t), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Normalize(t), nil
		}
	}

	return time.Time{}, validationError(fmt.Sprintf("invalid timestamp %q", raw))
}

// ParseWeekStart accepts a calendar date (read in loc) or any instant.
func ParseWeekStart(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return d, nil
	}
	t, err := ParseInstant(raw)
	if err != nil {
		return time.Time{}, validationError(fmt.Sprintf("invalid week start %q", raw))
	}
	return t.In(loc), nil
}
