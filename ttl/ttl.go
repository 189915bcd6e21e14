// Package ttl derives the storage TTL and absolute expiry for a cacheable
// response, per §4.3's fixed precedence: s-maxage, then max-age, then
// Expires, else zero.
package ttl

import (
	"strconv"
	"strings"
	"time"

	"github.com/subzero-cache/subzero/message"
)

// Result is the outcome of a TTL calculation.
type Result struct {
	// TTL is the number of seconds to store the entry for, clamped to >= 0.
	// It includes the Grace passed to Calculate, if any.
	TTL int
	// Expiry is now + the TTL excluding grace, per §4.3 and the §9 open
	// question ("treat absolute expiry as now + ttl uniformly").
	Expiry time.Time
}

// Calculate derives the storage TTL and absolute expiry for res as of now.
// grace is the serve_when_stale duration added to the stored TTL but never
// to the absolute expiry (§4.3).
func Calculate(res *message.Response, now time.Time, grace time.Duration) Result {
	base := baseSeconds(res, now)
	if base < 0 {
		base = 0
	}
	return Result{
		TTL:    base + int(grace/time.Second),
		Expiry: now.Add(time.Duration(base) * time.Second),
	}
}

// baseSeconds computes the TTL before grace is added, following the §4.3
// precedence. It may return a negative number for an already-past Expires
// date; callers clamp.
func baseSeconds(res *message.Response, now time.Time) int {
	if cc, ok := res.Headers.Get("Cache-Control"); ok {
		if s, ok := directiveValue(cc, "s-maxage"); ok {
			if n, err := strconv.Atoi(s); err == nil {
				return n
			}
		}
		if s, ok := directiveValue(cc, "max-age"); ok {
			if n, err := strconv.Atoi(s); err == nil {
				return n
			}
		}
	}
	if exp, ok := res.Headers.Get("Expires"); ok {
		t, err := time.Parse(time.RFC1123, exp)
		if err != nil {
			// degrade silently to TTL 0, per §7 kind 5
			return 0
		}
		return int(t.Sub(now) / time.Second)
	}
	return 0
}

// directiveValue extracts the value of a "name=value" directive from a
// comma-separated Cache-Control header, matching the directive exactly (not
// as a substring of another directive's name).
func directiveValue(cacheControl, name string) (string, bool) {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		directive, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(directive), name) {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}
