// Package domain ttl.go contains token lifetime rules.
package domain

import "time"

// DefaultPendingTTL is how long a request token may wait for authorization.
const DefaultPendingTTL = 15 * time.Minute

// DefaultAccessMaxAge is the age after which an access token is reported as
// old and should be re-verified remotely.
const DefaultAccessMaxAge = 365 * 24 * time.Hour

// PendingExpired reports whether a request token created at createdAt has
// outlived ttl at now. A token exactly ttl old is still live. Both instants
// are compared at whole-second precision, the resolution tokens are stored at.
func PendingExpired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Truncate(time.Second).Sub(createdAt.Truncate(time.Second)) > ttl
}

// PendingCutoff returns the creation time before which pending tokens are expired.
func PendingCutoff(now time.Time, ttl time.Duration) time.Time {
	return now.Add(-ttl)
}

// AccessValidity classifies a stored access token by age.
func AccessValidity(createdAt, now time.Time, maxAge time.Duration) TokenValidity {
	if maxAge > 0 && now.Sub(createdAt) > maxAge {
		return ValidityOld
	}
	return ValidityValid
}

// DaysSince returns the number of whole days between t and now.
func DaysSince(t, now time.Time) int {
	if now.Before(t) {
		return 0
	}
	return int(now.Sub(t) / (24 * time.Hour))
}
