package origin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/subzero-cache/subzero/events"
	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
)

func TestFetchMergesHeadersAndFiresEvents(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Via", "1.0 upstream")
		w.Header().Set("X-Test", "origin")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("body"))
	}))
	defer upstream.Close()

	bus := events.NewBus()
	var fired []events.Name
	bus.Register(events.OriginRequired, func(*message.Request, *message.Response) error {
		fired = append(fired, events.OriginRequired)
		return nil
	})
	bus.Register(events.OriginFetched, func(req *message.Request, res *message.Response) error {
		fired = append(fired, events.OriginFetched)
		return nil
	})

	f := New(upstream.URL, bus)
	req := &message.Request{Method: "GET", URIRelative: "/path", Headers: header.New()}
	res := &message.Response{Headers: header.New()}
	res.Headers.Set("X-Seeded", "plugin")

	result, err := f.Fetch(context.Background(), req, res)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Fetched {
		t.Fatal("expected Fetched = true")
	}
	if res.Status != http.StatusOK || string(res.Body) != "body" {
		t.Fatalf("res = %+v", res)
	}
	if v, _ := res.Headers.Get("X-Test"); v != "origin" {
		t.Fatalf("X-Test = %q", v)
	}
	if v, ok := res.Headers.Get("X-Seeded"); !ok || v != "plugin" {
		t.Fatalf("expected seeded header to survive merge, got %q, %v", v, ok)
	}
	if len(fired) != 2 || fired[0] != events.OriginRequired || fired[1] != events.OriginFetched {
		t.Fatalf("fired = %v", fired)
	}
}

func TestFetch5xxShortCircuitsNoOriginFetchedEvent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	bus := events.NewBus()
	fetchedFired := false
	bus.Register(events.OriginFetched, func(*message.Request, *message.Response) error {
		fetchedFired = true
		return nil
	})

	f := New(upstream.URL, bus)
	req := &message.Request{Method: "GET", URIRelative: "/path", Headers: header.New()}
	res := &message.Response{Headers: header.New()}

	result, err := f.Fetch(context.Background(), req, res)
	if err != nil {
		t.Fatal(err)
	}
	if result.Fetched {
		t.Fatal("expected Fetched = false for a 5xx origin response")
	}
	if fetchedFired {
		t.Fatal("origin_fetched must not fire on 5xx")
	}
	if res.Status != http.StatusInternalServerError {
		t.Fatalf("res.Status = %d", res.Status)
	}
}

func TestFetchTransportFailureReturnsBadGatewayNotAFault(t *testing.T) {
	bus := events.NewBus()
	f := New("http://127.0.0.1:1", bus)
	req := &message.Request{Method: "GET", URIRelative: "/path", Headers: header.New()}
	res := &message.Response{Headers: header.New()}

	result, err := f.Fetch(context.Background(), req, res)
	if err != nil {
		t.Fatalf("transport failure must not be a fault: %v", err)
	}
	if result.Fetched {
		t.Fatal("expected Fetched = false")
	}
	if res.Status != http.StatusBadGateway {
		t.Fatalf("res.Status = %d, want 502", res.Status)
	}
}
