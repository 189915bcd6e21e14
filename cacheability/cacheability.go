// Package cacheability implements the two cacheability predicates of §4.2:
// whether a request accepts a cached answer, and whether a response may be
// stored. Matching is deliberately literal — exact header-value equality,
// not Cache-Control directive-list parsing — per the covered subset (§4.2,
// §9 "Cacheability directives").
package cacheability

import "github.com/subzero-cache/subzero/message"

// noStoreTokens are the response Cache-Control values that, as the entire
// header value, forbid storage.
var noStoreTokens = []string{"no-cache", "must-revalidate", "no-store", "private"}

// RequestAccepts reports whether a request may be satisfied from the cache:
// GET, with neither Cache-Control nor Pragma set to exactly "no-cache".
func RequestAccepts(req *message.Request) bool {
	if req.Method != "GET" {
		return false
	}
	if req.Headers.Equals("Pragma", "no-cache") {
		return false
	}
	if req.Headers.Equals("Cache-Control", "no-cache") {
		return false
	}
	return true
}

// ResponseCacheable reports whether a response may be written to the store.
// False if Pragma or Cache-Control is set to exactly one of the tokens in
// noStoreTokens; true otherwise (including directive lists such as
// "max-age=600", which this literal matcher does not parse).
func ResponseCacheable(res *message.Response) bool {
	if res.Headers.Equals("Pragma", "no-cache") {
		return false
	}
	for _, token := range noStoreTokens {
		if res.Headers.Equals("Cache-Control", token) {
			return false
		}
	}
	return true
}
