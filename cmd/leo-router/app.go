package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/cache"
	"github.com/signalsfoundry/leo-route-optimizer/internal/config"
	"github.com/signalsfoundry/leo-route-optimizer/internal/ephemeris"
	"github.com/signalsfoundry/leo-route-optimizer/internal/geocode"
	"github.com/signalsfoundry/leo-route-optimizer/internal/httpapi"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/nbi"
	"github.com/signalsfoundry/leo-route-optimizer/internal/observability"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim/state"
	"github.com/signalsfoundry/leo-route-optimizer/internal/upstream"
	"github.com/signalsfoundry/leo-route-optimizer/kb"
	"github.com/signalsfoundry/leo-route-optimizer/timectrl"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	cfg       config.Config
	log       logging.Logger
	collector *observability.RouterCollector
	kb        *kb.KnowledgeBase
	svc       *sim.Service
	hub       *httpapi.TopologyHub
	store     cache.Store

	httpSrv    *http.Server
	grpcSrv    *grpc.Server
	metricsSrv *http.Server

	httpLis    net.Listener
	grpcLis    net.Listener
	metricsLis net.Listener
}

// newApp builds every component from cfg. reg selects the Prometheus
// registry; nil uses the global one.
func newApp(ctx context.Context, cfg config.Config, log logging.Logger, reg prometheus.Registerer) (*app, error) {
	collector, err := observability.NewRouterCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics collector: %w", err)
	}

	store, err := openCache(ctx, cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	initial := core.SimulationConfig{FaultSeed: cfg.Simulation.FaultSeed}
	simState, err := openState(cfg.State, initial, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	provider := ephemeris.NewProvider(catalogSource(cfg.Ephemeris), ephemeris.Options{
		MaxSatellites: cfg.Ephemeris.MaxSatellites,
		CacheTTL:      cfg.Ephemeris.CatalogTTL,
		RetryCooldown: cfg.Ephemeris.RetryCooldown,
		FetchBudget:   cfg.Ephemeris.FetchBudget,
		LoadSeed:      cfg.Ephemeris.LoadSeed,
		Clock:         timectrl.SystemClock{},
		Cache:         store,
		Observer:      collector,
		Logger:        log.With(logging.String("component", "ephemeris")),
	})

	geoClient := upstream.New(cfg.Geocode.Timeout, cfg.Geocode.UserAgent)
	geoClient.MaxAttempts = 1
	resolver := geocode.NewResolver(cfg.Geocode.URL, geoClient, store, log.With(logging.String("component", "geocode")))

	topologyKB := kb.NewKnowledgeBase()
	svc := sim.NewService(provider, resolver, simState, log,
		sim.WithMetrics(collector),
		sim.WithKnowledgeBase(topologyKB),
	)
	hub := httpapi.NewTopologyHub(topologyKB, log)

	a := &app{
		cfg:       cfg,
		log:       log,
		collector: collector,
		kb:        topologyKB,
		svc:       svc,
		hub:       hub,
		store:     store,
	}

	a.httpSrv = &http.Server{
		Handler:           httpapi.NewRouter(svc, log, httpapi.Options{Metrics: collector, Hub: hub}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	a.grpcSrv = nbi.NewServer(svc, log, collector)
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}
	return a, nil
}

func catalogSource(cfg config.EphemerisConfig) ephemeris.Source {
	if cfg.TLEFile != "" {
		return ephemeris.FileSource{Path: cfg.TLEFile}
	}
	return ephemeris.NewFetcher(cfg.TLEURL, upstream.New(cfg.FetchTimeout, "leo-route-optimizer"))
}

func openCache(ctx context.Context, cfg config.CacheConfig, log logging.Logger) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheSQLite, config.CachePostgres:
		driver := "sqlite"
		if cfg.Backend == config.CachePostgres {
			driver = "pgx"
		}
		db, dialect, err := cache.Open(ctx, driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s cache: %w", cfg.Backend, err)
		}
		store := cache.NewSQLStore(db, dialect)
		if err := store.InitSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init %s cache: %w", cfg.Backend, err)
		}
		log.Info(ctx, "using sql cache", logging.String("backend", cfg.Backend))
		return store, nil

	case config.CacheRedis:
		client, err := cache.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		log.Info(ctx, "using redis cache")
		return cache.NewRedisStore(client, "", cfg.TTL), nil

	default:
		return cache.NewMemoryStore(), nil
	}
}

func openState(cfg config.StateConfig, initial core.SimulationConfig, log logging.Logger) (state.Store, error) {
	if cfg.Backend == config.StateConsul {
		s, err := state.NewConsulStore(cfg.ConsulAddr, cfg.ConsulKey, initial, log)
		if err != nil {
			return nil, fmt.Errorf("open consul state: %w", err)
		}
		return s, nil
	}
	return state.NewMemoryStore(initial, log), nil
}

func (a *app) listen() error {
	var err error
	if a.httpLis, err = net.Listen("tcp", a.cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("listen http %s: %w", a.cfg.HTTP.Addr, err)
	}
	if a.cfg.GRPC.Addr != "" {
		if a.grpcLis, err = net.Listen("tcp", a.cfg.GRPC.Addr); err != nil {
			return fmt.Errorf("listen grpc %s: %w", a.cfg.GRPC.Addr, err)
		}
	}
	if a.metricsSrv != nil {
		if a.metricsLis, err = net.Listen("tcp", a.cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("listen metrics %s: %w", a.cfg.Metrics.Addr, err)
		}
	}
	return nil
}

// run serves until ctx is cancelled or a server fails, then shuts every
// server down.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info(gctx, "serving HTTP", logging.String("addr", a.httpLis.Addr().String()))
		return ignoreClosed(a.httpSrv.Serve(a.httpLis))
	})
	if a.grpcLis != nil {
		g.Go(func() error {
			a.log.Info(gctx, "serving gRPC", logging.String("addr", a.grpcLis.Addr().String()))
			if err := a.grpcSrv.Serve(a.grpcLis); !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}
	if a.metricsLis != nil {
		g.Go(func() error {
			a.log.Info(gctx, "serving Prometheus metrics", logging.String("addr", a.metricsLis.Addr().String()))
			return ignoreClosed(a.metricsSrv.Serve(a.metricsLis))
		})
	}
	if interval := a.cfg.Simulation.PublishInterval; interval > 0 {
		g.Go(func() error {
			return ignoreCanceled(a.publishLoop(gctx, interval))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	err := g.Wait()
	a.log.Info(context.Background(), "router stopped")
	return err
}

// publishLoop pushes a fresh topology to the knowledge base immediately and
// then on every controller tick.
func (a *app) publishLoop(ctx context.Context, interval time.Duration) error {
	publish := func(ctx context.Context, _ time.Time) {
		if err := a.svc.PublishTopology(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn(ctx, "topology publish failed", logging.Err(err))
		}
	}
	publish(ctx, time.Now())

	tc := timectrl.NewTimeController(time.Now().UTC(), interval, timectrl.RealTime)
	tc.AddListener(publish)
	return tc.Run(ctx)
}

func (a *app) shutdown() {
	a.log.Info(context.Background(), "shutting down router")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.hub.Close()
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		a.log.Warn(ctx, "http shutdown", logging.Err(err))
	}
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Shutdown(ctx)
	}

	stopped := make(chan struct{})
	go func() {
		a.grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		a.grpcSrv.Stop()
	}
}

func (a *app) close() {
	for _, lis := range []net.Listener{a.httpLis, a.grpcLis, a.metricsLis} {
		if lis != nil {
			_ = lis.Close()
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn(context.Background(), "close cache", logging.Err(err))
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
