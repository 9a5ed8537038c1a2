// Package cache holds the storage backends for upstream data the router
// reuses between requests: raw TLE catalogs and geocoded places.
package cache

import (
	"context"
	"strings"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// NormalizeKey collapses whitespace and lowercases a lookup query so that
// equivalent queries share a cache entry.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Store is implemented by every backend in this package.
type Store interface {
	LoadCatalog(ctx context.Context, source string) (model.Catalog, bool, error)
	StoreCatalog(ctx context.Context, c model.Catalog) error
	GetPlace(ctx context.Context, key string) (model.Place, bool, error)
	PutPlace(ctx context.Context, key string, p model.Place) error
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*RedisStore)(nil)
)
