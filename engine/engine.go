// Package engine implements the State Engine (§4.8): it orchestrates one
// request end to end — classify, serve/fetch, store, emit diagnostic
// headers — and is the net/http.Handler the thin protocol adapter mounts.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/subzero-cache/subzero/cacheability"
	"github.com/subzero-cache/subzero/cachekey"
	"github.com/subzero-cache/subzero/events"
	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
	"github.com/subzero-cache/subzero/metrics"
	"github.com/subzero-cache/subzero/origin"
	"github.com/subzero-cache/subzero/revalidate"
	"github.com/subzero-cache/subzero/store"
	"github.com/subzero-cache/subzero/ttl"
)

// ExtendedStates is the extension point reserved for the WARM/COLD states
// (§9 open question). The engine does not read it: whatever its value, an
// expired entry is a miss that falls through to FETCH, no background
// revalidation is published, and the only states emitted are SUBZERO and
// HOT, as §4.8 describes.
type ExtendedStates struct {
	Enabled bool
	// Grace is a past-expiry allowance for WARM reads; the engine does not
	// consult it.
	Grace time.Duration
}

// Config wires an Engine's collaborators.
type Config struct {
	Store     store.Store
	Fetcher   *origin.Fetcher
	Bus       *events.Bus
	Publisher *revalidate.Publisher
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger
	// Host is this cache's own identity, prepended to Via as "1.1 <host>".
	Host string
	// Grace is the serve_when_stale TTL addition (§4.3), added to the
	// stored TTL but never to the absolute expiry.
	Grace time.Duration
	// KeyFunc derives the opaque cache key for a request; defaults to
	// cachekey.FromRequest.
	KeyFunc        func(*http.Request) string
	ExtendedStates ExtendedStates
}

// Engine is the State Engine.
type Engine struct {
	store     store.Store
	fetcher   *origin.Fetcher
	bus       *events.Bus
	publisher *revalidate.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
	host      string
	grace     time.Duration
	keyFunc   func(*http.Request) string
	extended  ExtendedStates
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = cachekey.FromRequest
	}
	return &Engine{
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		bus:       cfg.Bus,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		log:       logger,
		host:      cfg.Host,
		grace:     cfg.Grace,
		keyFunc:   keyFunc,
		extended:  cfg.ExtendedStates,
	}
}

// ServeHTTP implements http.Handler. A panic anywhere in handle — whether a
// store-protocol fault, an event-handler error, or the programming-error
// panic §7 kind 4 calls for — is caught here and turned into a 500 without
// partial output, per §7's "abort with guaranteed connection return."
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer e.recover(w, r)
	e.handle(w, r)
}

func (e *Engine) recover(w http.ResponseWriter, r *http.Request) {
	if err := recover(); err != nil {
		e.log.Error().Interface("panic", err).Str("url", r.URL.String()).Msg("fault serving request")
		http.Error(w, "internal cache error", http.StatusInternalServerError)
	}
}

func (e *Engine) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := e.keyFunc(r)
	req, err := buildRequest(r)
	if err != nil {
		panic(fmt.Errorf("build request: %w", err))
	}
	res := &message.Response{Headers: header.New()}

	if !cacheability.RequestAccepts(req) {
		e.fetchOnly(ctx, req, res)
		e.writeResponse(w, res)
		return
	}

	if e.serveFromStore(ctx, key, req, res, w) {
		return
	}

	e.fetchAndClassify(ctx, key, req, res)
	e.writeResponse(w, res)
}

// fetchOnly handles a request the Cacheability Oracle rejects: proxy
// straight through, still firing response_ready (per the §8 invariant that
// it fires for every request short of a 5xx), but never touching the
// store.
func (e *Engine) fetchOnly(ctx context.Context, req *message.Request, res *message.Response) {
	result, err := e.fetcher.Fetch(ctx, req, res)
	if err != nil {
		panic(fmt.Errorf("origin fetch: %w", err))
	}
	if !result.Fetched {
		return
	}
	res.State = message.Subzero
	setDiagnosticHeaders(res, e.host)
	if err := e.bus.Fire(events.ResponseReady, req, res); err != nil {
		panic(fmt.Errorf("response_ready handler: %w", err))
	}
}

// serveFromStore implements the LOOKUP state: a store hit with positive
// TTL serves HOT; a miss falls through to the caller's FETCH state. It
// returns true if it fully served the request (including sending the
// response), false if the caller must still fetch from origin.
func (e *Engine) serveFromStore(ctx context.Context, key string, req *message.Request, res *message.Response, w http.ResponseWriter) bool {
	entry, ok, err := e.store.Read(ctx, key)
	if err != nil {
		panic(fmt.Errorf("store read: %w", err))
	}
	if !ok {
		return false
	}

	res.Status = entry.Status
	res.Body = entry.Body
	res.Headers = entry.Headers
	res.State = message.Hot

	if err := e.bus.Fire(events.CacheAccessed, req, res); err != nil {
		panic(fmt.Errorf("cache_accessed handler: %w", err))
	}
	setDiagnosticHeaders(res, e.host)
	if err := e.bus.Fire(events.ResponseReady, req, res); err != nil {
		panic(fmt.Errorf("response_ready handler: %w", err))
	}
	if e.metrics != nil {
		e.metrics.CacheHits.Inc()
	}
	e.writeResponse(w, res)
	return true
}

// fetchAndClassify implements the FETCH state: fetch from origin, and
// unless the origin answered >= 500 (no state change, no events, straight
// passthrough per §4.5/§4.8), classify SUBZERO, store if cacheable, and
// emit diagnostics.
func (e *Engine) fetchAndClassify(ctx context.Context, key string, req *message.Request, res *message.Response) {
	result, err := e.fetcher.Fetch(ctx, req, res)
	if err != nil {
		panic(fmt.Errorf("origin fetch: %w", err))
	}
	if !result.Fetched {
		if e.metrics != nil {
			e.metrics.CacheMisses.Inc()
		}
		return
	}

	res.State = message.Subzero
	e.maybeStore(ctx, key, req, res)

	setDiagnosticHeaders(res, e.host)
	if err := e.bus.Fire(events.ResponseReady, req, res); err != nil {
		panic(fmt.Errorf("response_ready handler: %w", err))
	}
	if e.metrics != nil {
		e.metrics.CacheMisses.Inc()
	}
}

// maybeStore writes res to the store if and only if the Cacheability
// Oracle allows it and the computed TTL is positive (§4.3 rule 4, §3
// "every stored entry's TTL is >= 0... a non-cacheable response never
// reaches the store").
func (e *Engine) maybeStore(ctx context.Context, key string, req *message.Request, res *message.Response) {
	if !cacheability.ResponseCacheable(res) {
		return
	}
	result := ttl.Calculate(res, time.Now(), e.grace)
	res.TTLSeconds = result.TTL
	if result.TTL <= 0 {
		return
	}
	if err := e.store.Write(ctx, key, req.URIFull, res, result.TTL, result.Expiry); err != nil {
		panic(fmt.Errorf("store write: %w", err))
	}
	if e.metrics != nil {
		e.metrics.StoresTotal.Inc()
		e.metrics.TTLSeconds.Observe(float64(result.TTL))
	}
}

// Refresh re-runs the pipeline for uriFull against the store only, without
// serving an HTTP response. It is what the revalidate.Worker calls for
// each message it receives off the "revalidate" channel (§4.6).
func (e *Engine) Refresh(ctx context.Context, uriFull string) error {
	httpReq, err := revalidate.NewRequestForURI(uriFull)
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	key := e.keyFunc(httpReq)
	req, err := buildRequest(httpReq)
	if err != nil {
		return fmt.Errorf("build refresh request: %w", err)
	}
	res := &message.Response{Headers: header.New()}

	result, err := e.fetcher.Fetch(ctx, req, res)
	if err != nil {
		return fmt.Errorf("origin fetch: %w", err)
	}
	if !result.Fetched {
		return nil
	}
	res.State = message.Subzero
	e.maybeStore(ctx, key, req, res)
	return nil
}

// buildRequest derives the message.Request from r, with URIFull set to the
// request's actual full URI — distinct from the opaque store key a
// Cache-Key override may substitute, so Refresh always has a real URL to
// re-fetch.
func buildRequest(r *http.Request) (*message.Request, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	full := *r.URL
	full.Scheme = requestScheme(r)
	full.Host = r.Host
	return &message.Request{
		Method:      r.Method,
		URIFull:     cachekey.ForURI(&full),
		URIRelative: r.URL.RequestURI(),
		Host:        r.Host,
		Headers:     header.FromHTTP(r.Header),
		Body:        body,
	}, nil
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// setDiagnosticHeaders emits Via/X-Cache/X-Cache-State per §4.8's
// set_headers step.
func setDiagnosticHeaders(res *message.Response, host string) {
	via := "1.1 " + host
	if existing, ok := res.Headers.Get("Via"); ok && existing != "" {
		via = via + ", " + existing
	}
	res.Headers.Set("Via", via)

	if res.State.IsHit() {
		res.Headers.Set("X-Cache", "HIT")
	} else {
		res.Headers.Set("X-Cache", "MISS")
	}
	res.Headers.Set("X-Cache-State", res.State.String())
}

func (e *Engine) writeResponse(w http.ResponseWriter, res *message.Response) {
	res.Headers.Each(func(name, value string) {
		w.Header().Set(name, value)
	})
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(res.Body)
}
