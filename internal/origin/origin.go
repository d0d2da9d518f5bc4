// Package origin fetches byte ranges of ciphertext from wherever an encrypted
// resource actually lives.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupportedScheme = errors.New("unsupported origin scheme")

// Fetcher returns the bytes start..end (inclusive) of the resource at rawURL.
// Fewer bytes come back when the resource ends before end.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, start, end int64) ([]byte, error)
}

// StatusError reports an origin that answered with neither 200 nor 206.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin answered %d %s", e.Status, http.StatusText(e.Status))
}

// readRange reads the requested window from an origin body. A 200 answer
// means the origin ignored the range and is sending the whole object, so the
// leading bytes are skipped.
func readRange(body io.Reader, status int, start, end int64) ([]byte, error) {
	if status == http.StatusOK && start > 0 {
		skipped, err := io.CopyN(io.Discard, body, start)
		if err == io.EOF || skipped < start {
			return []byte{}, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "skip to range start")
		}
	}

	data, err := io.ReadAll(io.LimitReader(body, end-start+1))
	if err != nil {
		return nil, errors.Wrap(err, "read origin body")
	}
	return data, nil
}

// Router picks a Fetcher by URL scheme.
type Router struct {
	fetchers map[string]Fetcher
}

func NewRouter() *Router {
	return &Router{
		fetchers: make(map[string]Fetcher),
	}
}

// Handle registers f for scheme.
func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.fetchers[strings.ToLower(scheme)] = f
	return r
}

func (r *Router) Fetch(ctx context.Context, rawURL string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, errors.Errorf("invalid origin range %d-%d", start, end)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse origin url")
	}
	f, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
	return f.Fetch(ctx, rawURL, start, end)
}
