package server

import (
	"strings"
	"time"
)

// parseOptionalTime accepts RFC 3339 timestamps or bare dates. A blank
// value returns the zero time with no error.
func parseOptionalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// parsePeriod parses a required period_start/period_end pair.
func parsePeriod(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := parseOptionalTime(rawStart)
	if err != nil || start.IsZero() {
		return time.Time{}, time.Time{}, newValidationError("period_start", "invalid_period_start", "invalid period_start timestamp")
	}
	end, err := parseOptionalTime(rawEnd)
	if err != nil || end.IsZero() {
		return time.Time{}, time.Time{}, newValidationError("period_end", "invalid_period_end", "invalid period_end timestamp")
	}
	return start, end, nil
}
