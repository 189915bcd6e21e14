package ttl

import (
	"testing"
	"time"

	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
)

func res(headers map[string]string) *message.Response {
	h := header.New()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &message.Response{Headers: h}
}

func TestPrecedence(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	expiresIn300 := now.Add(300 * time.Second).Format(time.RFC1123)

	cases := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{
			"s-maxage wins over max-age and Expires",
			map[string]string{"Cache-Control": "max-age=600, s-maxage=1200", "Expires": expiresIn300},
			1200,
		},
		{
			"max-age wins over Expires",
			map[string]string{"Cache-Control": "max-age=600", "Expires": expiresIn300},
			600,
		},
		{
			"bare Expires",
			map[string]string{"Expires": expiresIn300},
			300,
		},
		{
			"nothing present",
			nil,
			0,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Calculate(res(c.headers), now, 0)
			if got.TTL != c.want {
				t.Fatalf("TTL = %d, want %d", got.TTL, c.want)
			}
		})
	}
}

func TestNegativeExpiresClampsToZero(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	past := now.Add(-300 * time.Second).Format(time.RFC1123)

	got := Calculate(res(map[string]string{"Expires": past}), now, 0)
	if got.TTL != 0 {
		t.Fatalf("TTL = %d, want 0", got.TTL)
	}
}

func TestMalformedExpiresDegradesToZero(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	got := Calculate(res(map[string]string{"Expires": "not-a-date"}), now, 0)
	if got.TTL != 0 {
		t.Fatalf("TTL = %d, want 0", got.TTL)
	}
}

func TestGraceAddsToTTLNotExpiry(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	got := Calculate(res(map[string]string{"Cache-Control": "max-age=60"}), now, 30*time.Second)
	if got.TTL != 90 {
		t.Fatalf("TTL = %d, want 90", got.TTL)
	}
	if !got.Expiry.Equal(now.Add(60 * time.Second)) {
		t.Fatalf("Expiry = %v, want now+60s", got.Expiry)
	}
}
