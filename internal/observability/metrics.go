package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RouterCollector bundles the Prometheus metrics exposed by the route
// optimizer: transport level request metrics for HTTP and gRPC plus routing
// and ephemeris specific series.
type RouterCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
	RPCRequests   *prometheus.CounterVec
	RPCDurations  *prometheus.HistogramVec

	RouteResults            *prometheus.CounterVec
	PathComputationDuration prometheus.Histogram
	EphemerisFetches        *prometheus.CounterVec

	TopologySatellites prometheus.Gauge
	TopologyLinks      prometheus.Gauge
	TopologyDisabled   prometheus.Gauge
}

// NewRouterCollector registers the router metrics against reg, defaulting to
// the global Prometheus registry when nil. Registering twice against the same
// registry reuses the existing collectors.
func NewRouterCollector(reg prometheus.Registerer) (*RouterCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	r := &registrar{reg: reg}
	c := &RouterCollector{
		gatherer: gatherer,
		HTTPRequests: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by handler, method and status code.",
		}, []string{"handler", "method", "code"})),
		HTTPDurations: register(r, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: latency,
		}, []string{"handler", "method"})),
		RPCRequests: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Unary gRPC calls, by service, method and status code.",
		}, []string{"service", "method", "code"})),
		RPCDurations: register(r, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grpc_request_duration_seconds",
			Help:    "gRPC call latency in seconds.",
			Buckets: latency,
		}, []string{"service", "method"})),
		RouteResults: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_results_total",
			Help: "Route computations by outcome (success, error, no_path).",
		}, []string{"status"})),
		PathComputationDuration: register(r, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "route_path_computation_duration_seconds",
			Help:    "Duration of link derivation, graph build and shortest path search per route request.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		})),
		EphemerisFetches: register(r, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ephemeris_catalog_loads_total",
			Help: "TLE catalog loads by source (cache, upstream, stale_cache, unavailable).",
		}, []string{"source"})),
		TopologySatellites: register(r, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topology_satellites",
			Help: "Satellites in the most recent snapshot.",
		})),
		TopologyLinks: register(r, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topology_links",
			Help: "Inter-satellite links in the most recent snapshot.",
		})),
		TopologyDisabled: register(r, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topology_disabled_satellites",
			Help: "Satellites disabled by the solar storm simulation in the most recent snapshot.",
		})),
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// UnaryServerInterceptor counts unary RPCs by status code and observes their
// latency.
func (c *RouterCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c == nil {
			return resp, err
		}
		service, method := SplitMethod(info.FullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// ObserveHTTP records one served HTTP request.
func (c *RouterCollector) ObserveHTTP(handler, method string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(handler, method, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(handler, method).Observe(d.Seconds())
}

// ObserveRoute records the outcome and path computation time of a route request.
func (c *RouterCollector) ObserveRoute(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.RouteResults.WithLabelValues(status).Inc()
	c.PathComputationDuration.Observe(d.Seconds())
}

// ObserveCatalogLoad counts where a TLE catalog came from.
func (c *RouterCollector) ObserveCatalogLoad(source string) {
	if c == nil {
		return
	}
	c.EphemerisFetches.WithLabelValues(source).Inc()
}

// SetTopologyCounts updates the snapshot gauges.
func (c *RouterCollector) SetTopologyCounts(satellites, links, disabled int) {
	if c == nil {
		return
	}
	c.TopologySatellites.Set(float64(satellites))
	c.TopologyLinks.Set(float64(links))
	c.TopologyDisabled.Set(float64(disabled))
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RouterCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RouterCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method"). Parts
// that cannot be parsed come back as "unknown".
func SplitMethod(fullMethod string) (service, method string) {
	service, method = "unknown", "unknown"
	path := strings.TrimPrefix(fullMethod, "/")
	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		return service, method
	}
	svc, m := path[:slash], path[slash+1:]
	svc = svc[strings.LastIndexAny(svc, "./")+1:]
	if svc != "" {
		service = svc
	}
	if m != "" {
		method = m
	}
	return service, method
}

// registrar keeps the first registration failure so collectors can be
// declared in a single literal.
type registrar struct {
	reg prometheus.Registerer
	err error
}

// register adds c to the registry, returning the already registered collector
// of the same type when one exists under the same descriptor.
func register[C prometheus.Collector](r *registrar, c C) C {
	if r.err != nil {
		return c
	}
	err := r.reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
		err = fmt.Errorf("collector already registered with an incompatible type: %w", err)
	}
	r.err = fmt.Errorf("register metrics: %w", err)
	return c
}
