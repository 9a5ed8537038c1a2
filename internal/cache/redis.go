package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

const defaultRedisPrefix = "leo:"

// RedisStore caches catalogs and places in Redis. Entries expire after TTL
// when it is non-zero.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. An empty prefix uses "leo:".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL, connects, and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type redisCatalog struct {
	Data      []byte    `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (r *RedisStore) catalogKey(source string) string { return r.prefix + "catalog:" + source }
func (r *RedisStore) placeKey(key string) string     { return r.prefix + "place:" + NormalizeKey(key) }

func (r *RedisStore) LoadCatalog(ctx context.Context, source string) (model.Catalog, bool, error) {
	raw, err := r.client.Get(ctx, r.catalogKey(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Catalog{}, false, nil
	}
	if err != nil {
		return model.Catalog{}, false, fmt.Errorf("catalog cache: redis get: %w", err)
	}

	var rc redisCatalog
	if err := json.Unmarshal(raw, &rc); err != nil {
		return model.Catalog{}, false, fmt.Errorf("catalog cache: decode: %w", err)
	}
	return model.Catalog{Source: source, Data: rc.Data, FetchedAt: rc.FetchedAt}, true, nil
}

func (r *RedisStore) StoreCatalog(ctx context.Context, c model.Catalog) error {
	raw, err := json.Marshal(redisCatalog{Data: c.Data, FetchedAt: c.FetchedAt})
	if err != nil {
		return fmt.Errorf("catalog cache: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.catalogKey(c.Source), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("catalog cache: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) GetPlace(ctx context.Context, key string) (model.Place, bool, error) {
	raw, err := r.client.Get(ctx, r.placeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Place{}, false, nil
	}
	if err != nil {
		return model.Place{}, false, fmt.Errorf("geocode cache: redis get: %w", err)
	}

	var p model.Place
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Place{}, false, fmt.Errorf("geocode cache: decode: %w", err)
	}
	return p, true, nil
}

func (r *RedisStore) PutPlace(ctx context.Context, key string, p model.Place) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("geocode cache: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.placeKey(key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("geocode cache: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
