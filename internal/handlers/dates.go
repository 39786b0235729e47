package handlers

import (
	"time"
)

// dateLayout is the ISO-8601 calendar date form used by every request and
// response body.
const dateLayout = "2006-01-02"

// parseDate parses an ISO-8601 calendar date.
func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// parseDateOr parses an optional date field, substituting the fallback for
// an empty string.
func parseDateOr(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return parseDate(s)
}
