package store

import (
	"errors"
	"testing"
)

func TestEntryFromFieldsRejectsPartialRecord(t *testing.T) {
	_, err := entryFromFields(map[string]string{"status": "200"})
	if !errors.Is(err, ErrProtocolFault) {
		t.Fatalf("err = %v, want ErrProtocolFault", err)
	}
}

func TestEntryFromFieldsParsesHeaderFields(t *testing.T) {
	entry, err := entryFromFields(map[string]string{
		"status":      "200",
		"body":        "hi",
		"uri":         "http://example.com",
		"h:Via":       "1.0 upstream",
		"h:Cache-Key": "ignored-if-not-h-prefixed",
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := entry.Headers.Get("Via"); !ok || v != "1.0 upstream" {
		t.Fatalf("Via header = %q, %v", v, ok)
	}
	if entry.Headers.Len() != 2 {
		t.Fatalf("expected 2 headers, got %d", entry.Headers.Len())
	}
}
