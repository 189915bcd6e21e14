// Package cachekey derives the opaque per-URI cache key §4.9 says is an
// externally provided variable. The core treats the key as opaque; this
// package is the caller's reference implementation of how to derive one
// (scheme+host+path+query).
package cachekey

import (
	"net/http"
	"net/url"
)

// ForURI returns the default cache key for a request's full URI:
// scheme, host, path and query, verbatim. Collision avoidance across
// distinct origins sharing the same store is the caller's responsibility.
func ForURI(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path + queryPart(u)
}

func queryPart(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}

// FromRequest derives the cache key for an inbound HTTP request, honoring a
// Cache-Key header override if the caller set one — a narrow, additive
// feature letting the request-handling layer participate in key derivation
// without this package needing to know why.
func FromRequest(r *http.Request) string {
	if override := r.Header.Get("Cache-Key"); override != "" {
		return override
	}
	full := *r.URL
	full.Scheme = scheme(r)
	full.Host = r.Host
	return ForURI(&full)
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
