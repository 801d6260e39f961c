// Package ratelimit interprets throttling responses from the collector.
package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxRetryAfter bounds how long a single Retry-After header can hold the
// delivery worker.
const MaxRetryAfter = 5 * time.Minute

// ParseRetryAfter parses the value of a Retry-After header, which is either
// a non-negative integer number of seconds or an HTTP-date. The returned
// duration never exceeds MaxRetryAfter. ok is false when s is empty or
// malformed.
func ParseRetryAfter(s string, now time.Time) (d time.Duration, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if isDigits(s) {
		secs, err := strconv.ParseUint(s, 10, 64)
		if errors.Is(err, strconv.ErrRange) || secs > uint64(MaxRetryAfter/time.Second) {
			return MaxRetryAfter, true
		}
		if err != nil {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if date, err := http.ParseTime(s); err == nil {
		return clamp(date.Sub(now)), true
	}
	return 0, false
}

// FromResponse extracts the server-requested wait from a 429 response.
func FromResponse(r *http.Response, now time.Time) (time.Duration, bool) {
	if r == nil || r.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	return ParseRetryAfter(r.Header.Get("Retry-After"), now)
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxRetryAfter {
		return MaxRetryAfter
	}
	return d
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
