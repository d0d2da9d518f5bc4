package origin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"podstream/internal/names"
	"podstream/internal/storage"
)

// StorageFetcher reads storage://<address> blobs from a storage node.
type StorageFetcher struct {
	client *storage.Client
}

func NewStorageFetcher(client *storage.Client) *StorageFetcher {
	return &StorageFetcher{
		client: client,
	}
}

func (f *StorageFetcher) Fetch(ctx context.Context, rawURL string, start, end int64) ([]byte, error) {
	return f.FetchAddress(ctx, strings.TrimPrefix(rawURL, "storage://"), start, end)
}

// FetchAddress reads a range of the blob at address.
func (f *StorageFetcher) FetchAddress(ctx context.Context, address string, start, end int64) ([]byte, error) {
	if address == "" {
		return nil, errors.New("storage url has no address")
	}

	body, status, err := f.client.GetRange(ctx, address, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch block %s", address)
	}
	if body == nil {
		return nil, &StatusError{Status: status}
	}
	defer body.Close()

	return readRange(body, status, start, end)
}

// Resolver turns a published name into its record.
type Resolver interface {
	Resolve(ctx context.Context, name string) (names.Record, error)
}

// NameFetcher reads name://<name> resources. Names are resolved through the
// names service; concurrent lookups of one name share a single request and
// results are cached for a short time.
type NameFetcher struct {
	resolver Resolver
	blobs    *StorageFetcher
	cache    *expirable.LRU[string, names.Record]
	group    singleflight.Group
}

const nameCacheSize = 1024

func NewNameFetcher(resolver Resolver, blobs *StorageFetcher, ttl time.Duration) *NameFetcher {
	return &NameFetcher{
		resolver: resolver,
		blobs:    blobs,
		cache:    expirable.NewLRU[string, names.Record](nameCacheSize, nil, ttl),
	}
}

func (f *NameFetcher) resolve(ctx context.Context, name string) (names.Record, error) {
	if record, ok := f.cache.Get(name); ok {
		return record, nil
	}

	// The shared lookup must outlive any single caller that gives up, but
	// each caller stops waiting as soon as its own context ends.
	results := f.group.DoChan(name, func() (any, error) {
		record, err := f.resolver.Resolve(context.WithoutCancel(ctx), name)
		if err != nil {
			return names.Record{}, err
		}
		f.cache.Add(name, record)
		return record, nil
	})

	select {
	case <-ctx.Done():
		return names.Record{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return names.Record{}, res.Err
		}
		return res.Val.(names.Record), nil
	}
}

func (f *NameFetcher) Fetch(ctx context.Context, rawURL string, start, end int64) ([]byte, error) {
	name := strings.TrimPrefix(rawURL, "name://")

	record, err := f.resolve(ctx, name)
	if errors.Is(err, names.ErrNotFound) {
		return nil, &StatusError{Status: http.StatusNotFound}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "resolve name %s", name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return f.blobs.FetchAddress(ctx, record.Address, start, end)
}

// Forget drops a cached resolution, e.g. after the name was republished.
func (f *NameFetcher) Forget(name string) {
	f.cache.Remove(name)
}
