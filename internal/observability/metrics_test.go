package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/leo.routing.v1.RouteService/Route"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("RouteService", "Route", "OK")); got != 1 {
		t.Fatalf("grpc_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "grpc_request_duration_seconds", map[string]string{
		"service": "RouteService",
		"method":  "Route",
	}); count != 1 {
		t.Fatalf("grpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/leo.routing.v1.RouteService/Route"}
	_, _ = collector.UnaryServerInterceptor()(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "signal lost")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("RouteService", "Route", "NotFound")); got != 1 {
		t.Fatalf("grpc_requests_total error label = %v, want 1", got)
	}
}

func TestObserveRouteAndHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}

	collector.ObserveRoute("success", 2*time.Millisecond)
	collector.ObserveRoute("no_path", time.Millisecond)
	collector.ObserveHTTP("/route", http.MethodPost, http.StatusOK, 5*time.Millisecond)
	collector.ObserveCatalogLoad("cache")

	if got := testutil.ToFloat64(collector.RouteResults.WithLabelValues("success")); got != 1 {
		t.Fatalf("route_results_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/route", "POST", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.EphemerisFetches.WithLabelValues("cache")); got != 1 {
		t.Fatalf("ephemeris_catalog_loads_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "route_path_computation_duration_seconds", nil); count != 2 {
		t.Fatalf("path computation samples = %d, want 2", count)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("first NewRouterCollector: %v", err)
	}
	second, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("second NewRouterCollector: %v", err)
	}
	if first.RouteResults != second.RouteResults {
		t.Fatalf("expected re-registration to reuse the existing counter vec")
	}
}

func TestMetricsHandlerExposesTopologyGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRouterCollector(reg)
	if err != nil {
		t.Fatalf("NewRouterCollector: %v", err)
	}
	collector.SetTopologyCounts(150, 812, 31)

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"topology_satellites 150", "topology_links 812", "topology_disabled_satellites 31"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in /metrics output:\n%s", want, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	tests := map[string][2]string{
		"":                                    {"unknown", "unknown"},
		"/leo.routing.v1.RouteService/Route":  {"RouteService", "Route"},
		"RouteService/Topology":               {"RouteService", "Topology"},
		"garbage":                             {"unknown", "unknown"},
	}
	for in, want := range tests {
		svc, m := SplitMethod(in)
		if svc != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %q,%q want %q,%q", in, svc, m, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
