package cachekey

import (
	"net/http"
	"net/url"
	"testing"
)

func TestForURIIncludesQuery(t *testing.T) {
	u, _ := url.Parse("http://example.com/path?a=1")
	if got := ForURI(u); got != "http://example.com/path?a=1" {
		t.Fatalf("got %q", got)
	}
}

func TestForURIOmitsQuerySeparatorWhenAbsent(t *testing.T) {
	u, _ := url.Parse("http://example.com/path")
	if got := ForURI(u); got != "http://example.com/path" {
		t.Fatalf("got %q", got)
	}
}

func TestFromRequestHonorsCacheKeyOverride(t *testing.T) {
	r, _ := http.NewRequest("GET", "/path", nil)
	r.Header.Set("Cache-Key", "custom-key")
	if got := FromRequest(r); got != "custom-key" {
		t.Fatalf("got %q", got)
	}
}

func TestFromRequestDerivesFromHostAndPath(t *testing.T) {
	r, _ := http.NewRequest("GET", "http://irrelevant/path?x=1", nil)
	r.Host = "example.com"
	if got := FromRequest(r); got != "http://example.com/path?x=1" {
		t.Fatalf("got %q", got)
	}
}
