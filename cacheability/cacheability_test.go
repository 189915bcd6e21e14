package cacheability

import (
	"testing"

	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
)

func req(method string, headers map[string]string) *message.Request {
	h := header.New()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &message.Request{Method: method, Headers: h}
}

func res(headers map[string]string) *message.Response {
	h := header.New()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &message.Response{Headers: h}
}

func TestRequestAccepts(t *testing.T) {
	cases := []struct {
		name string
		req  *message.Request
		want bool
	}{
		{"plain GET", req("GET", nil), true},
		{"POST rejected", req("POST", nil), false},
		{"no-cache Cache-Control", req("GET", map[string]string{"Cache-Control": "no-cache"}), false},
		{"no-cache Pragma", req("GET", map[string]string{"Pragma": "no-cache"}), false},
		{"max-age directive accepted (literal matcher)", req("GET", map[string]string{"Cache-Control": "max-age=0"}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := RequestAccepts(c.req); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestResponseCacheable(t *testing.T) {
	cases := []struct {
		name string
		res  *message.Response
		want bool
	}{
		{"no headers", res(nil), true},
		{"max-age=600 is cacheable", res(map[string]string{"Cache-Control": "max-age=600"}), true},
		{"no-store", res(map[string]string{"Cache-Control": "no-store"}), false},
		{"must-revalidate", res(map[string]string{"Cache-Control": "must-revalidate"}), false},
		{"private", res(map[string]string{"Cache-Control": "private"}), false},
		{"Pragma no-cache", res(map[string]string{"Pragma": "no-cache"}), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ResponseCacheable(c.res); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}
