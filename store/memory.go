package store

import (
	"context"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/subzero-cache/subzero/message"
)

// memoryRecord is what MemoryStore keeps per key — the otter.Cache value
// type, carrying its own expiry since otter's built-in expiry calculator is
// configured with one fixed default rather than a per-write TTL.
type memoryRecord struct {
	fields    map[string]string
	expiresAt time.Time
}

// MemoryStore is an in-process Store implementation for local development
// and tests, backed by github.com/maypok86/otter/v2. It satisfies the
// exact Store contract RedisStore does, including the expiry-index and
// pub/sub behavior, so the engine and its tests are indifferent to which
// is wired in.
type MemoryStore struct {
	cache *otter.Cache[string, memoryRecord]

	mu    sync.Mutex
	index map[string]float64 // uriFull -> expiry score, the expiry index
	subs  map[string][]chan string
}

// NewMemoryStore returns a MemoryStore with room for maxSize entries.
func NewMemoryStore(maxSize int) *MemoryStore {
	cache, err := otter.New[string, memoryRecord](&otter.Options[string, memoryRecord]{
		MaximumSize: maxSize,
	})
	if err != nil {
		panic(err)
	}
	return &MemoryStore{
		cache: cache,
		index: make(map[string]float64),
		subs:  make(map[string][]chan string),
	}
}

// Read implements Store.
func (m *MemoryStore) Read(_ context.Context, key string) (*Entry, bool, error) {
	rec, ok := m.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(rec.expiresAt) {
		m.cache.Invalidate(key)
		return nil, false, nil
	}
	entry, err := entryFromFields(rec.fields)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Write implements Store.
func (m *MemoryStore) Write(_ context.Context, key, uriFull string, res *message.Response, ttlSeconds int, expiry time.Time) error {
	fields := fieldsFromResponse(uriFull, res)
	m.cache.Set(key, memoryRecord{
		fields:    fields,
		expiresAt: time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	})

	m.mu.Lock()
	m.index[uriFull] = float64(expiry.Unix())
	m.mu.Unlock()
	return nil
}

// Publish implements Store.
func (m *MemoryStore) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	subs := append([]chan string(nil), m.subs[channel]...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe implements Store.
func (m *MemoryStore) Subscribe(_ context.Context, channel string) (Subscription, error) {
	ch := make(chan string, 16)
	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()
	return &memorySubscription{store: m, channel: channel, ch: ch}, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

// Purge removes key, for use by callers reacting to a read fault (§7).
func (m *MemoryStore) Purge(key string) {
	m.cache.Invalidate(key)
}

// ExpirySnapshot returns the current contents of the expiry index, for
// tests and the priming/analysis tooling described in §3.
func (m *MemoryStore) ExpirySnapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.index))
	for k, v := range m.index {
		out[k] = v
	}
	return out
}

type memorySubscription struct {
	store   *MemoryStore
	channel string
	ch      chan string
}

func (s *memorySubscription) Messages() <-chan string { return s.ch }

func (s *memorySubscription) Close() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	subs := s.store.subs[s.channel]
	for i, ch := range subs {
		if ch == s.ch {
			s.store.subs[s.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(s.ch)
	return nil
}
