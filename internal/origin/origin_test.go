package origin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"podstream/internal/names"
	"podstream/internal/storage"
)

var testContent = []byte("0123456789")

func rangedOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/episode.enc":
			http.ServeContent(w, r, "episode.enc", time.Time{}, bytes.NewReader(testContent))
		case "/whole.enc":
			// Ignores Range entirely.
			w.WriteHeader(http.StatusOK)
			w.Write(testContent)
		case "/broken.enc":
			http.Error(w, "boom", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPFetcher(t *testing.T) {
	ts := rangedOrigin(t)
	f := NewHTTPFetcher(ts.Client())
	ctx := context.Background()

	tests := []struct {
		name       string
		path       string
		start, end int64
		want       string
		status     int
	}{
		{name: "ranged", path: "/episode.enc", start: 2, end: 5, want: "2345"},
		{name: "past end", path: "/episode.enc", start: 5, end: 100, want: "56789"},
		{name: "origin ignores range", path: "/whole.enc", start: 3, end: 6, want: "3456"},
		{name: "origin ignores range past end", path: "/whole.enc", start: 20, end: 30, want: ""},
		{name: "not found", path: "/missing.enc", start: 0, end: 3, status: http.StatusNotFound},
		{name: "origin failure", path: "/broken.enc", start: 0, end: 3, status: http.StatusBadGateway},
		{name: "unsatisfiable", path: "/episode.enc", start: 50, end: 60, status: http.StatusRequestedRangeNotSatisfiable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := f.Fetch(ctx, ts.URL+tt.path, tt.start, tt.end)
			if tt.status != 0 {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Status != tt.status {
					t.Fatalf("expected status error %d, got %v", tt.status, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, data)
			}
		})
	}
}

func TestHTTPFetcherCanceled(t *testing.T) {
	ts := rangedOrigin(t)
	f := NewHTTPFetcher(ts.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, ts.URL+"/episode.enc", 0, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRouter(t *testing.T) {
	ts := rangedOrigin(t)
	r := NewRouter().
		Handle("http", NewHTTPFetcher(ts.Client())).
		Handle("HTTPS", NewHTTPFetcher(ts.Client()))
	ctx := context.Background()

	data, err := r.Fetch(ctx, ts.URL+"/episode.enc", 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "01" {
		t.Errorf("expected %q, got %q", "01", data)
	}

	if _, err := r.Fetch(ctx, "ftp://example.com/episode.enc", 0, 1); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
	if _, err := r.Fetch(ctx, ts.URL+"/episode.enc", 5, 1); err == nil {
		t.Error("expected an error for an inverted range")
	}
}

func TestS3Fetcher(t *testing.T) {
	var gotRange atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/episodes/show/ep1.enc" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		gotRange.Store(r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 2-5/10")
		w.Header().Set("Content-Length", "4")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(testContent[2:6])
	}))
	defer ts.Close()

	f := NewS3Fetcher(newTestS3Client(ts.URL))
	ctx := context.Background()

	data, err := f.Fetch(ctx, "s3://episodes/show/ep1.enc", 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2345" {
		t.Errorf("expected %q, got %q", "2345", data)
	}
	if got, _ := gotRange.Load().(string); got != "bytes=2-5" {
		t.Errorf("expected Range bytes=2-5, got %q", got)
	}

	_, err = f.Fetch(ctx, "s3://episodes/show/missing.enc", 0, 3)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
		t.Errorf("expected status error 404, got %v", err)
	}

	if _, err := f.Fetch(ctx, "s3://episodes", 0, 3); err == nil {
		t.Error("expected an error for a url without a key")
	}
}

func TestStorageFetcher(t *testing.T) {
	ts := httptest.NewServer(storage.NewStorageServer(storage.NewInMemoryStorage()))
	defer ts.Close()

	client := storage.NewClient(ts.URL, ts.Client())
	address, err := client.Store(bytes.NewReader(testContent))
	if err != nil {
		t.Fatal(err)
	}

	f := NewStorageFetcher(client)
	ctx := context.Background()

	data, err := f.Fetch(ctx, "storage://"+address, 4, 7)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "4567" {
		t.Errorf("expected %q, got %q", "4567", data)
	}

	missing := storage.AddressOf([]byte("missing"))
	_, err = f.Fetch(ctx, "storage://"+missing, 0, 3)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
		t.Errorf("expected status error 404, got %v", err)
	}
}

type countingResolver struct {
	calls atomic.Int32
	inner Resolver
}

func (r *countingResolver) Resolve(ctx context.Context, name string) (names.Record, error) {
	r.calls.Add(1)
	return r.inner.Resolve(ctx, name)
}

func TestNameFetcher(t *testing.T) {
	blobServer := httptest.NewServer(storage.NewStorageServer(storage.NewInMemoryStorage()))
	defer blobServer.Close()
	blobs := storage.NewClient(blobServer.URL, blobServer.Client())
	address, err := blobs.Store(bytes.NewReader(testContent))
	if err != nil {
		t.Fatal(err)
	}

	published := names.NewInMemoryNames()
	published.Put("show.ep-1", names.Record{Address: address, Size: int64(len(testContent))})
	nameServer := httptest.NewServer(names.NewNamesServer(published))
	defer nameServer.Close()

	resolver := &countingResolver{inner: names.NewClient(nameServer.URL, nameServer.Client())}
	f := NewNameFetcher(resolver, NewStorageFetcher(blobs), time.Minute)
	ctx := context.Background()

	// 1. Resolve and read
	data, err := f.Fetch(ctx, "name://show.ep-1", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "012" {
		t.Errorf("expected %q, got %q", "012", data)
	}

	// 2. Second read is served from the cache
	data, err = f.Fetch(ctx, "name://show.ep-1", 7, 9)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "789" {
		t.Errorf("expected %q, got %q", "789", data)
	}
	if calls := resolver.calls.Load(); calls != 1 {
		t.Errorf("expected 1 resolution, got %d", calls)
	}

	// 3. Forget forces a fresh lookup
	f.Forget("show.ep-1")
	if _, err := f.Fetch(ctx, "name://show.ep-1", 0, 0); err != nil {
		t.Fatal(err)
	}
	if calls := resolver.calls.Load(); calls != 2 {
		t.Errorf("expected 2 resolutions, got %d", calls)
	}

	// 4. Unknown names look like a missing origin object
	_, err = f.Fetch(ctx, "name://nope", 0, 3)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
		t.Errorf("expected status error 404, got %v", err)
	}
}

type blockingResolver struct {
	release chan struct{}
	record  names.Record
}

func (r *blockingResolver) Resolve(ctx context.Context, name string) (names.Record, error) {
	<-r.release
	return r.record, nil
}

func TestNameFetcherCanceledDuringResolve(t *testing.T) {
	resolver := &blockingResolver{release: make(chan struct{})}
	defer close(resolver.release)
	f := NewNameFetcher(resolver, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "name://show.ep-1", 0, 1)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch kept waiting on the resolver after its context was canceled")
	}
}

func TestReadRangeShortBody(t *testing.T) {
	data, err := readRange(strings.NewReader("abc"), http.StatusOK, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "bc" {
		t.Errorf("expected %q, got %q", "bc", data)
	}
}
