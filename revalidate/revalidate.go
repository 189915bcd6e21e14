// Package revalidate implements the Revalidation Publisher (§4.6): a
// fire-and-forget PUBLISH of a stale entry's uri_full on the shared store's
// "revalidate" channel, plus a Worker that plays the out-of-process
// subscriber side for local development.
package revalidate

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/subzero-cache/subzero/store"
)

// Publisher enqueues background-refresh requests.
type Publisher struct {
	Store store.Store
}

// New returns a Publisher over s.
func New(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Publish fires uriFull on the well-known revalidate channel and returns
// immediately; it does not wait for a subscriber to act on it.
func (p *Publisher) Publish(ctx context.Context, uriFull string) error {
	return p.Store.Publish(ctx, store.RevalidateChannel, uriFull)
}

// Refresher re-runs the full pipeline for one URI. The engine implements
// this; kept as an interface here so this package does not import engine
// and create a cycle.
type Refresher interface {
	Refresh(ctx context.Context, uriFull string) error
}

// Worker subscribes to the revalidate channel and re-runs the pipeline for
// each URI it receives, standing in for the out-of-process background
// worker runtime §1 treats as an external collaborator.
type Worker struct {
	Store     store.Store
	Refresher Refresher
	Log       zerolog.Logger
}

// Run subscribes and processes messages until ctx is cancelled or the
// subscription errors. It is meant to be driven by an errgroup alongside
// other background workers.
func (w *Worker) Run(ctx context.Context) error {
	sub, err := w.Store.Subscribe(ctx, store.RevalidateChannel)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case uriFull, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			if err := w.Refresher.Refresh(ctx, uriFull); err != nil {
				w.Log.Error().Err(err).Str("uri", uriFull).Msg("background revalidation failed")
			}
		}
	}
}

// NewRequestForURI builds the synthetic GET request Refresh issues against
// the engine for a revalidated URI.
func NewRequestForURI(uriFull string) (*http.Request, error) {
	return http.NewRequest(http.MethodGet, uriFull, nil)
}
