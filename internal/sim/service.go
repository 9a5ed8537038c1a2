// Package sim is the routing service behind both transports. It reads a
// position snapshot, the shared simulation config, and resolved endpoints,
// then delegates to core for topology and path computation.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/ephemeris"
	"github.com/signalsfoundry/leo-route-optimizer/internal/geocode"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/observability"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim/state"
	"github.com/signalsfoundry/leo-route-optimizer/kb"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// ErrInvalidRequest wraps caller input problems.
var ErrInvalidRequest = errors.New("invalid route request")

// PositionProvider yields the current constellation snapshot.
type PositionProvider interface {
	Snapshot(ctx context.Context) ([]model.Satellite, error)
}

// Geocoder resolves route endpoints.
type Geocoder interface {
	Resolve(ctx context.Context, q geocode.Query) (model.Place, error)
}

// Metrics receives routing observations. *observability.RouterCollector
// satisfies it.
type Metrics interface {
	ObserveRoute(status string, d time.Duration)
	SetTopologyCounts(satellites, links, disabled int)
}

// TopologyView is a topology together with the config it was built under.
type TopologyView struct {
	Topology model.Topology
	Config   core.SimulationConfig
}

// RouteRequest carries both endpoints as submitted.
type RouteRequest struct {
	Source geocode.Query
	Target geocode.Query
}

// Resolution echoes how each endpoint was interpreted.
type Resolution struct {
	SourceUsed   string     `json:"source_used"`
	SourceCoords [2]float64 `json:"source_coords"`
	TargetUsed   string     `json:"target_used"`
	TargetCoords [2]float64 `json:"target_coords"`
}

// RouteResponse is the outcome of a route request. Status is "success",
// "error" (no coverage) or "no_path". Result is set only on success.
type RouteResponse struct {
	Status     string
	Message    string
	Result     *model.RouteResult
	Resolution Resolution
	// Err is the underlying routing error for failed routes.
	Err error
}

// Option customises Service construction.
type Option func(*Service)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithKnowledgeBase enables PublishTopology and publishing after toggles.
func WithKnowledgeBase(k *kb.KnowledgeBase) Option {
	return func(s *Service) { s.kb = k }
}

// WithDemoWeather overrides the zone set installed by ToggleWeather.
func WithDemoWeather(zones []model.WeatherZone) Option {
	return func(s *Service) { s.demoWeather = zones }
}

// WithNow overrides the timestamp source for generated topologies.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service answers topology, route and toggle requests. It is safe for
// concurrent use; all mutable state lives in the state.Store.
type Service struct {
	provider    PositionProvider
	geocoder    Geocoder
	store       state.Store
	log         logging.Logger
	metrics     Metrics
	kb          *kb.KnowledgeBase
	demoWeather []model.WeatherZone
	now         func() time.Time
}

// NewService wires a Service.
func NewService(provider PositionProvider, geocoder Geocoder, store state.Store, log logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.Noop()
	}
	s := &Service{
		provider:    provider,
		geocoder:    geocoder,
		store:       store,
		log:         log,
		demoWeather: core.DemoWeatherZones(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topology builds the current topology view.
func (s *Service) Topology(ctx context.Context) (TopologyView, error) {
	ctx, span := observability.StartSpan(ctx, "sim.Topology")
	defer span.End()

	cfg, err := s.store.Load(ctx)
	if err != nil {
		observability.FailSpan(span, err)
		return TopologyView{}, fmt.Errorf("load simulation config: %w", err)
	}
	sats, err := s.snapshot(ctx)
	if err != nil {
		observability.FailSpan(span, err)
		return TopologyView{}, err
	}

	topo := core.BuildTopology(sats, cfg, s.now())
	if s.metrics != nil {
		s.metrics.SetTopologyCounts(len(topo.Satellites), len(topo.Links), len(topo.Disabled))
	}
	span.SetAttributes(
		attribute.Int("topology.satellites", len(topo.Satellites)),
		attribute.Int("topology.links", len(topo.Links)),
		attribute.Int("topology.disabled", len(topo.Disabled)),
	)
	return TopologyView{Topology: topo, Config: cfg}, nil
}

// Route resolves both endpoints and computes the route over the current
// snapshot. Routing failures are reported in the response, not as errors;
// the error return is reserved for bad input and infrastructure faults.
func (s *Service) Route(ctx context.Context, req RouteRequest) (RouteResponse, error) {
	ctx, span := observability.StartSpan(ctx, "sim.Route")
	defer span.End()
	log := logging.FromContextOr(ctx, s.log)

	var src, dst model.Place
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src, err = s.geocoder.Resolve(gctx, req.Source)
		return err
	})
	g.Go(func() error {
		var err error
		dst, err = s.geocoder.Resolve(gctx, req.Target)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.FailSpan(span, err)
		return RouteResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	resolution := Resolution{
		SourceUsed:   src.Name,
		SourceCoords: [2]float64{src.Point.Lat, src.Point.Lon},
		TargetUsed:   dst.Name,
		TargetCoords: [2]float64{dst.Point.Lat, dst.Point.Lon},
	}

	cfg, err := s.store.Load(ctx)
	if err != nil {
		observability.FailSpan(span, err)
		return RouteResponse{}, fmt.Errorf("load simulation config: %w", err)
	}
	sats, err := s.snapshot(ctx)
	if err != nil {
		observability.FailSpan(span, err)
		return RouteResponse{}, err
	}

	start := time.Now()
	links := core.BuildLinks(sats)
	result, routeErr := core.FindRoute(src.Point, dst.Point, sats, links, cfg)
	elapsed := time.Since(start)

	failure := core.Classify(routeErr)
	if s.metrics != nil {
		s.metrics.ObserveRoute(failure.Status, elapsed)
	}
	span.SetAttributes(
		attribute.String("route.status", failure.Status),
		attribute.Int("route.satellites", len(sats)),
		attribute.Bool("route.storm_active", cfg.SolarStorm),
	)

	if routeErr != nil {
		log.Info(ctx, "route not found",
			logging.String("status", failure.Status),
			logging.String("source", src.Name),
			logging.String("target", dst.Name),
			logging.Err(routeErr),
		)
		return RouteResponse{Status: failure.Status, Message: failure.Message, Resolution: resolution, Err: routeErr}, nil
	}

	span.SetAttributes(attribute.Int("route.hops", result.Hops), attribute.Int("route.latency_ms", result.LatencyMs))
	log.Debug(ctx, "route computed",
		logging.Int("hops", result.Hops),
		logging.Int("latency_ms", result.LatencyMs),
		logging.Duration("elapsed", elapsed),
	)
	return RouteResponse{Status: core.StatusSuccess, Result: &result, Resolution: resolution}, nil
}

// ToggleWeather flips between clear skies and the demo weather zones.
func (s *Service) ToggleWeather(ctx context.Context) (core.SimulationConfig, error) {
	return s.update(ctx, "weather", func(c core.SimulationConfig) core.SimulationConfig {
		return c.ToggleWeather(s.demoWeather)
	})
}

// ToggleSolarStorm flips the solar storm fault model.
func (s *Service) ToggleSolarStorm(ctx context.Context) (core.SimulationConfig, error) {
	return s.update(ctx, "solar_storm", func(c core.SimulationConfig) core.SimulationConfig {
		return c.ToggleSolarStorm()
	})
}

// State returns the current simulation config.
func (s *Service) State(ctx context.Context) (core.SimulationConfig, error) {
	return s.store.Load(ctx)
}

// PublishTopology builds the current topology and pushes it into the
// knowledge base for streaming subscribers. It is a no-op without one.
func (s *Service) PublishTopology(ctx context.Context) error {
	if s.kb == nil {
		return nil
	}
	view, err := s.Topology(ctx)
	if err != nil {
		return err
	}
	version := s.kb.Publish(view.Topology)
	s.log.Debug(ctx, "topology published",
		logging.Int("satellites", len(view.Topology.Satellites)),
		logging.Int("links", len(view.Topology.Links)),
		logging.Any("version", version),
	)
	return nil
}

func (s *Service) update(ctx context.Context, what string, fn state.UpdateFunc) (core.SimulationConfig, error) {
	ctx, span := observability.StartSpan(ctx, "sim.Toggle", attribute.String("toggle", what))
	defer span.End()

	cfg, err := s.store.Update(ctx, fn)
	if err != nil {
		observability.FailSpan(span, err)
		return core.SimulationConfig{}, fmt.Errorf("toggle %s: %w", what, err)
	}
	logging.FromContextOr(ctx, s.log).Info(ctx, "simulation toggled",
		logging.String("toggle", what),
		logging.Bool("weather_active", cfg.WeatherActive()),
		logging.Bool("solar_storm", cfg.SolarStorm),
	)

	if s.kb != nil {
		if err := s.PublishTopology(ctx); err != nil {
			s.log.Warn(ctx, "publish after toggle failed", logging.Err(err))
		}
	}
	return cfg, nil
}

// snapshot reads positions. An unavailable catalog degrades to an empty
// snapshot so callers still get a well-formed (empty) answer.
func (s *Service) snapshot(ctx context.Context) ([]model.Satellite, error) {
	sats, err := s.provider.Snapshot(ctx)
	if errors.Is(err, ephemeris.ErrUpstreamUnavailable) {
		s.log.Warn(ctx, "position snapshot unavailable; serving empty constellation", logging.Err(err))
		return []model.Satellite{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("position snapshot: %w", err)
	}
	return sats, nil
}
