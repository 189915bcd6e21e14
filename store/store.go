// Package store implements the Cache Store Adapter (§4.4): atomic read and
// write of a cache entry, plus the shared expiry index and the pub/sub
// facility the Revalidation Publisher uses (§4.6, §6).
//
// Two implementations satisfy Store: RedisStore, backed by
// github.com/redis/go-redis/v9 against the external contract of §6
// (HGETALL, TTL, HMSET, EXPIRE, ZADD on ledge:uris_by_expiry, PUBLISH), and
// MemoryStore, an in-process stand-in for local development and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
)

// ExpiryIndexKey is the well-known sorted-set key the expiry index lives
// under, per §6.
const ExpiryIndexKey = "ledge:uris_by_expiry"

// RevalidateChannel is the well-known pub/sub channel name, per §4.6/§6.
const RevalidateChannel = "revalidate"

// headerFieldPrefix disambiguates stored header fields from the structural
// fields status/body/uri, per §3.
const headerFieldPrefix = "h:"

// ErrProtocolFault is returned when a read/write against the store violates
// the shape contract of §4.4 or the underlying client reports an error.
// It is a §7 kind-1 fault: fatal for the request.
var ErrProtocolFault = errors.New("store: protocol fault")

// Entry is a fully populated cache entry as read back from the store.
type Entry struct {
	Status  int
	Body    []byte
	URI     string
	Headers *header.Map
}

// Subscription is a live pub/sub subscription to a single channel.
type Subscription interface {
	// Messages yields one payload per PUBLISH on the subscribed channel.
	// The channel is closed when Close is called or the connection drops.
	Messages() <-chan string
	Close() error
}

// Store is the Cache Store Adapter's contract.
type Store interface {
	// Read performs a batched get-all-fields-plus-remaining-TTL against
	// key. It returns ok=false on a miss (remaining TTL negative), a fully
	// populated Entry on a hit, and ErrProtocolFault-wrapped error on a
	// partial-record fault.
	Read(ctx context.Context, key string) (entry *Entry, ok bool, err error)

	// Write replaces key's hash with status/body/uri/h:-prefixed headers,
	// sets its TTL, and records uriFull's absolute expiry in the shared
	// expiry index, as one atomic pipeline. The caller guarantees res
	// passed the Cacheability Oracle (§4.4).
	Write(ctx context.Context, key, uriFull string, res *message.Response, ttlSeconds int, expiry time.Time) error

	// Publish fires a fire-and-forget PUBLISH on channel.
	Publish(ctx context.Context, channel, payload string) error

	// Subscribe opens a live subscription to channel.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Close releases the store's resources.
	Close() error
}

// entryFromFields builds an Entry from a flat field map as returned by
// HGETALL, enforcing the §3 "complete hash" invariant.
func entryFromFields(fields map[string]string) (*Entry, error) {
	statusStr, hasStatus := fields["status"]
	body, hasBody := fields["body"]
	if !hasStatus || !hasBody {
		return nil, fmt.Errorf("%w: incomplete record, fields=%v", ErrProtocolFault, keysOf(fields))
	}

	status, err := parseStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolFault, err)
	}

	h := header.New()
	for name, value := range fields {
		if trimmed, ok := cutPrefix(name, headerFieldPrefix); ok {
			h.Set(trimmed, value)
		}
	}

	return &Entry{
		Status:  status,
		Body:    []byte(body),
		URI:     fields["uri"],
		Headers: h,
	}, nil
}

// fieldsFromResponse builds the flat field map Write stores for res.
func fieldsFromResponse(uriFull string, res *message.Response) map[string]string {
	fields := map[string]string{
		"status": fmt.Sprintf("%d", res.Status),
		"body":   string(res.Body),
		"uri":    uriFull,
	}
	res.Headers.Each(func(name, value string) {
		fields[headerFieldPrefix+name] = value
	})
	return fields
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

func parseStatus(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
