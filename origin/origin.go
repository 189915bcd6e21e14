// Package origin implements the Origin Fetcher (§4.5): it proxies an
// inbound request to the configured upstream, fires origin_required before
// the call and origin_fetched after, and merges response headers rather
// than replacing them so earlier event handlers' seeded headers survive.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/subzero-cache/subzero/events"
	"github.com/subzero-cache/subzero/header"
	"github.com/subzero-cache/subzero/message"
)

// Result is the outcome of Fetch.
type Result struct {
	// Fetched is false when the origin returned >= 500: per §4.5 this
	// short-circuits before origin_fetched fires and before any store
	// write, and the State Engine passes the origin response through
	// as-is.
	Fetched bool
}

// Fetcher proxies requests to a single configured upstream location.
type Fetcher struct {
	ProxyLocation string
	Client        *http.Client
	Bus           *events.Bus
}

// New returns a Fetcher whose HTTP client does not follow redirects.
func New(proxyLocation string, bus *events.Bus) *Fetcher {
	return &Fetcher{
		ProxyLocation: proxyLocation,
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Bus: bus,
	}
}

// Fetch performs the upstream call for req, firing origin_required and
// (unless the origin answered >= 500) origin_fetched. When the origin
// replies, res.Status and res.Body are set from that reply and res.Headers
// has been merged with, not replaced by, the origin's headers. On a
// transport failure res gets status 502 and a short body instead.
func (f *Fetcher) Fetch(ctx context.Context, req *message.Request, res *message.Response) (Result, error) {
	if err := f.Bus.Fire(events.OriginRequired, req, res); err != nil {
		return Result{}, fmt.Errorf("origin_required handler: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, f.ProxyLocation+req.URIRelative, bodyReader(req.Body))
	if err != nil {
		return Result{}, fmt.Errorf("build upstream request: %w", err)
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}
	req.Headers.Each(func(name, value string) {
		httpReq.Header.Set(name, value)
	})

	httpRes, err := f.Client.Do(httpReq)
	if err != nil {
		// transport failure: §7 kind 3, reported as a 502-class passthrough,
		// not a fault for the core.
		res.Status = http.StatusBadGateway
		res.Body = []byte("upstream unreachable")
		return Result{Fetched: false}, nil
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read upstream body: %w", err)
	}

	res.Status = httpRes.StatusCode
	res.Body = body
	mergeHeaders(res.Headers, httpRes.Header)

	if res.Status >= http.StatusInternalServerError {
		return Result{Fetched: false}, nil
	}

	if err := f.Bus.Fire(events.OriginFetched, req, res); err != nil {
		return Result{}, fmt.Errorf("origin_fetched handler: %w", err)
	}
	return Result{Fetched: true}, nil
}

// mergeHeaders adds each of src's headers to dst, overwriting only the
// names src sets, so any header an earlier handler seeded under a name src
// never touches survives.
func mergeHeaders(dst *header.Map, src http.Header) {
	for name, values := range src {
		if len(values) == 0 {
			continue
		}
		dst.Set(name, values[len(values)-1])
	}
}

func bodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return &byteReader{body: body}
}

// byteReader avoids pulling in bytes.Reader's ReadAt/Seek surface for what
// is always a single linear read of a buffered request body.
type byteReader struct {
	body []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.body) {
		return 0, io.EOF
	}
	n := copy(p, r.body[r.pos:])
	r.pos += n
	return n, nil
}
