// Package ephemeris turns a public TLE catalog into position snapshots of
// the constellation at the current simulation time.
package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/leo-route-optimizer/internal/cache"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/model"
	"github.com/signalsfoundry/leo-route-optimizer/timectrl"
)

const (
	DefaultMaxSatellites = 150
	DefaultCacheTTL      = 6 * time.Hour
	DefaultRetryCooldown = time.Minute
	DefaultFetchBudget   = 20 * time.Second

	minLoad = 5
	maxLoad = 95
)

// ErrUpstreamUnavailable is returned when no catalog could be fetched and
// nothing is cached.
var ErrUpstreamUnavailable = errors.New("ephemeris: tle catalog unavailable")

// Catalog load sources reported to the observer.
const (
	LoadSourceCache    = "cache"
	LoadSourceUpstream = "upstream"
	LoadSourceStale    = "stale"
)

// CatalogCache persists raw catalogs between refreshes and restarts.
type CatalogCache interface {
	LoadCatalog(ctx context.Context, source string) (model.Catalog, bool, error)
	StoreCatalog(ctx context.Context, c model.Catalog) error
}

// CatalogObserver is notified each time a catalog is loaded.
type CatalogObserver interface {
	ObserveCatalogLoad(source string)
}

// Options tune a Provider. Zero values select defaults.
type Options struct {
	MaxSatellites int
	CacheTTL      time.Duration
	// RetryCooldown is how long a failed fetch suppresses further upstream
	// attempts. Meanwhile the stale catalog, if any, is served as is.
	RetryCooldown time.Duration
	// FetchBudget bounds one upstream fetch including its retries.
	FetchBudget time.Duration
	// LoadSeed seeds the simulated traffic load generator. Zero seeds from
	// the wall clock.
	LoadSeed int64
	Clock    timectrl.SimClock
	Cache    CatalogCache
	Observer CatalogObserver
	Logger   logging.Logger
	// Now reports wall time for cache freshness checks.
	Now func() time.Time
}

// Provider produces satellite snapshots. It is safe for concurrent use.
type Provider struct {
	source   Source
	cache    CatalogCache
	clock    timectrl.SimClock
	observer CatalogObserver
	log      logging.Logger
	now      func() time.Time
	ttl      time.Duration
	cooldown time.Duration
	budget   time.Duration
	max      int

	group singleflight.Group

	mu        sync.Mutex
	orbits    []orbit
	fetchedAt time.Time
	failedAt  time.Time
	lastErr   error
	rng       *rand.Rand
}

// NewProvider builds a Provider reading from source.
func NewProvider(source Source, opts Options) *Provider {
	p := &Provider{
		source:   source,
		cache:    opts.Cache,
		clock:    opts.Clock,
		observer: opts.Observer,
		log:      opts.Logger,
		now:      opts.Now,
		ttl:      opts.CacheTTL,
		cooldown: opts.RetryCooldown,
		budget:   opts.FetchBudget,
		max:      opts.MaxSatellites,
	}
	if p.cache == nil {
		p.cache = cache.NewMemoryStore()
	}
	if p.clock == nil {
		p.clock = timectrl.SystemClock{}
	}
	if p.log == nil {
		p.log = logging.Noop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.ttl <= 0 {
		p.ttl = DefaultCacheTTL
	}
	if p.cooldown <= 0 {
		p.cooldown = DefaultRetryCooldown
	}
	if p.budget <= 0 {
		p.budget = DefaultFetchBudget
	}
	if p.max <= 0 {
		p.max = DefaultMaxSatellites
	}
	seed := opts.LoadSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p.rng = rand.New(rand.NewSource(seed))
	return p
}

// Snapshot propagates the catalog to the clock's current time. The result
// holds at most MaxSatellites entries in catalog order; entries that fail to
// propagate are skipped and do not count toward the limit. When no catalog is
// available it returns an empty snapshot with ErrUpstreamUnavailable.
func (p *Provider) Snapshot(ctx context.Context) ([]model.Satellite, error) {
	orbits, err := p.catalog(ctx)
	if err != nil {
		return []model.Satellite{}, err
	}

	at := p.clock.Now()
	out := make([]model.Satellite, 0, min(len(orbits), p.max))
	for _, o := range orbits {
		if len(out) >= p.max {
			break
		}
		if sat, ok := o.snapshotEntry(at, 0); ok {
			out = append(out, sat)
		}
	}

	p.mu.Lock()
	for i := range out {
		out[i].Load = p.randomLoad()
	}
	p.mu.Unlock()
	return out, nil
}

// Refresh forces a catalog reload from the source, bypassing the TTL.
func (p *Provider) Refresh(ctx context.Context) error {
	_, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		data, err := p.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return nil, p.install(ctx, model.Catalog{Source: p.source.Name(), Data: data, FetchedAt: p.now()}, true, LoadSourceUpstream)
	})
	return err
}

// randomLoad must be called with p.mu held.
func (p *Provider) randomLoad() int {
	return minLoad + p.rng.Intn(maxLoad-minLoad+1)
}

func (p *Provider) catalog(ctx context.Context) ([]orbit, error) {
	p.mu.Lock()
	now := p.now()
	fresh := p.orbits != nil && now.Sub(p.fetchedAt) < p.ttl
	coolingDown := !p.failedAt.IsZero() && now.Sub(p.failedAt) < p.cooldown
	orbits, lastErr := p.orbits, p.lastErr
	p.mu.Unlock()

	switch {
	case fresh:
		return orbits, nil
	case coolingDown && orbits != nil:
		return orbits, nil
	case coolingDown:
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
	}

	// The flight outlives any single caller: one cancelled request must not
	// fail the others waiting on it.
	v, err, _ := p.group.Do("catalog", func() (interface{}, error) {
		return p.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.([]orbit), nil
}

// load resolves the catalog from cache or source. A fresh cache entry is
// used as is; a stale one is refreshed and kept as fallback when the fetch
// fails. A failed fetch starts the retry cooldown.
func (p *Provider) load(ctx context.Context) ([]orbit, error) {
	name := p.source.Name()

	cached, ok, err := p.cache.LoadCatalog(ctx, name)
	if err != nil {
		p.log.Warn(ctx, "tle cache read failed", logging.String("source", name), logging.Err(err))
		ok = false
	}
	if ok && cached.Age(p.now()) < p.ttl {
		if err := p.install(ctx, cached, false, LoadSourceCache); err == nil {
			return p.currentOrbits(), nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.budget)
	data, fetchErr := p.source.Fetch(fetchCtx)
	cancel()
	if fetchErr == nil {
		fresh := model.Catalog{Source: name, Data: data, FetchedAt: p.now()}
		fetchErr = p.install(ctx, fresh, true, LoadSourceUpstream)
		if fetchErr == nil {
			return p.currentOrbits(), nil
		}
	}
	p.markFailed(fetchErr)

	if ok {
		p.log.Warn(ctx, "tle fetch failed; serving stale catalog",
			logging.String("source", name),
			logging.Duration("age", cached.Age(p.now())),
			logging.Err(fetchErr),
		)
		if err := p.install(ctx, cached, false, LoadSourceStale); err == nil {
			return p.currentOrbits(), nil
		}
	}

	p.log.Error(ctx, "tle catalog unavailable", logging.String("source", name), logging.Err(fetchErr))
	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, fetchErr)
}

// install parses c and makes it the active catalog. persist writes it back
// to the cache.
func (p *Provider) install(ctx context.Context, c model.Catalog, persist bool, loadSource string) error {
	tles, err := ParseTLE(c.Data)
	if err != nil {
		return err
	}
	orbits := make([]orbit, 0, len(tles))
	for _, t := range tles {
		o, err := newOrbit(t)
		if err != nil {
			p.log.Debug(ctx, "skipping malformed tle", logging.String("name", t.Name), logging.Err(err))
			continue
		}
		orbits = append(orbits, o)
	}
	if len(orbits) == 0 {
		return errors.New("tle catalog contains no usable element sets")
	}

	if persist {
		if err := p.cache.StoreCatalog(ctx, c); err != nil {
			p.log.Warn(ctx, "tle cache write failed", logging.String("source", c.Source), logging.Err(err))
		}
	}

	p.mu.Lock()
	p.orbits = orbits
	p.fetchedAt = c.FetchedAt
	if loadSource == LoadSourceUpstream {
		p.failedAt, p.lastErr = time.Time{}, nil
	}
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.ObserveCatalogLoad(loadSource)
	}
	p.log.Info(ctx, "tle catalog loaded",
		logging.String("source", c.Source),
		logging.String("via", loadSource),
		logging.Int("element_sets", len(orbits)),
	)
	return nil
}

// markFailed starts the retry cooldown.
func (p *Provider) markFailed(err error) {
	p.mu.Lock()
	p.failedAt, p.lastErr = p.now(), err
	p.mu.Unlock()
}

func (p *Provider) currentOrbits() []orbit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orbits
}
