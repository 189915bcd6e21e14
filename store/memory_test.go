package store

import (
	"context"
	"testing"
	"time"

	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
)

func responseFixture() *message.Response {
	h := header.New()
	h.Set("Content-Type", "text/plain")
	return &message.Response{Status: 200, Body: []byte("hello"), Headers: h}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100)

	res := responseFixture()
	if err := s.Write(ctx, "key1", "http://example.com/a", res, 60, time.Now().Add(60*time.Second)); err != nil {
		t.Fatal(err)
	}

	entry, ok, err := s.Read(ctx, "key1")
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", entry, ok, err)
	}
	if entry.Status != 200 || string(entry.Body) != "hello" {
		t.Fatalf("entry = %+v", entry)
	}
	if v, ok := entry.Headers.Get("Content-Type"); !ok || v != "text/plain" {
		t.Fatalf("header round-trip failed: %q, %v", v, ok)
	}
	if entry.URI != "http://example.com/a" {
		t.Fatalf("URI = %q", entry.URI)
	}
}

func TestReadMissReturnsNotOkNoError(t *testing.T) {
	s := NewMemoryStore(100)
	entry, ok, err := s.Read(context.Background(), "missing")
	if entry != nil || ok || err != nil {
		t.Fatalf("Read() = %v, %v, %v, want nil, false, nil", entry, ok, err)
	}
}

func TestWriteUpdatesExpiryIndex(t *testing.T) {
	s := NewMemoryStore(100)
	expiry := time.Now().Add(5 * time.Minute)
	s.Write(context.Background(), "key1", "http://example.com/a", responseFixture(), 300, expiry)

	snap := s.ExpirySnapshot()
	if snap["http://example.com/a"] != float64(expiry.Unix()) {
		t.Fatalf("expiry index = %v", snap)
	}
}

func TestPublishSubscribe(t *testing.T) {
	s := NewMemoryStore(100)
	sub, err := s.Subscribe(context.Background(), RevalidateChannel)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	s.Publish(context.Background(), RevalidateChannel, "http://example.com/a")

	select {
	case payload := <-sub.Messages():
		if payload != "http://example.com/a" {
			t.Fatalf("payload = %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}
