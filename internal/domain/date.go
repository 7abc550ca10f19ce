package domain

import (
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// EpochDays converts a calendar date to the day count since 1970-01-01 that
// FatSecret uses for its date parameters.
func EpochDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// FromEpochDays is the inverse of EpochDays.
func FromEpochDays(n int) time.Time {
	return time.Unix(int64(n)*86400, 0).UTC()
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }
