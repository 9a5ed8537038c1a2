package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/kb"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

type fakeService struct {
	mu       sync.Mutex
	cfg      core.SimulationConfig
	topology model.Topology
	route    sim.RouteResponse
	routeErr error
	lastReq  sim.RouteRequest
}

func (f *fakeService) Topology(context.Context) (sim.TopologyView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sim.TopologyView{Topology: f.topology, Config: f.cfg}, nil
}

func (f *fakeService) Route(_ context.Context, req sim.RouteRequest) (sim.RouteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	return f.route, f.routeErr
}

func (f *fakeService) ToggleWeather(context.Context) (core.SimulationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = f.cfg.ToggleWeather(nil)
	return f.cfg, nil
}

func (f *fakeService) ToggleSolarStorm(context.Context) (core.SimulationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = f.cfg.ToggleSolarStorm()
	return f.cfg, nil
}

func (f *fakeService) State(context.Context) (core.SimulationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, nil
}

type observation struct {
	handler string
	method  string
	code    int
}

type fakeMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *fakeMetrics) ObserveHTTP(handler, method string, code int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{handler: handler, method: method, code: code})
}

func (m *fakeMetrics) snapshot() []observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]observation(nil), m.obs...)
}

func sampleTopology() model.Topology {
	return model.Topology{
		Satellites: []model.Satellite{
			{ID: "SAT-1", Lat: 0, Lon: 0, AltKm: 550, Load: 10},
			{ID: "SAT-2", Lat: 0, Lon: 10, AltKm: 550, Load: 20},
			{ID: "SAT-3", Lat: 0, Lon: 40, AltKm: 550, Load: 30},
		},
		Links:       []model.Link{{A: "SAT-1", B: "SAT-2"}},
		Disabled:    []string{"SAT-3"},
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestSatellitesEndpoint(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := &fakeService{topology: sampleTopology()}
	h := NewRouter(svc, nil, Options{Metrics: metrics})

	rec := do(t, h, http.MethodGet, "/satellites", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS header = %q, want *", got)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}

	var body dto.SatellitesResponse
	decode(t, rec, &body)
	if body.Meta.Count != 3 || body.Meta.LinkCount != 1 || body.Meta.DisabledCount != 1 {
		t.Fatalf("meta = %+v", body.Meta)
	}
	if body.Meta.MaxLinkRangeKm != core.MaxLinkRangeKm {
		t.Fatalf("max_link_range_km = %v, want %v", body.Meta.MaxLinkRangeKm, core.MaxLinkRangeKm)
	}
	if body.Meta.Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("timestamp = %q", body.Meta.Timestamp)
	}

	obs := metrics.snapshot()
	if len(obs) != 1 || obs[0] != (observation{handler: "satellites", method: http.MethodGet, code: http.StatusOK}) {
		t.Fatalf("metrics observations = %+v", obs)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := NewRouter(&fakeService{}, nil, Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("%s = %q, want abc-123", requestIDHeader, got)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouteSuccess(t *testing.T) {
	svc := &fakeService{route: sim.RouteResponse{
		Status: core.StatusSuccess,
		Result: &model.RouteResult{
			Path:         []string{"SAT-1", "SAT-2"},
			Hops:         2,
			LatencyMs:    43,
			WeatherAlert: true,
		},
		Resolution: sim.Resolution{
			SourceUsed:   "New York",
			SourceCoords: [2]float64{40.7, -74},
			TargetUsed:   "Custom Coords",
			TargetCoords: [2]float64{51.5, -0.1},
		},
	}}
	h := NewRouter(svc, nil, Options{})

	rec := do(t, h, http.MethodPost, "/route",
		`{"source":{"lat":"New York"},"target":{"lat":51.5,"lon":"-0.1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var body dto.RouteSuccess
	decode(t, rec, &body)
	if body.Status != core.StatusSuccess || body.Hops != 2 || body.LatencyMs != 43 || !body.WeatherAlert {
		t.Fatalf("body = %+v", body)
	}
	if body.Resolution.SourceUsed != "New York" || body.Resolution.TargetCoords != [2]float64{51.5, -0.1} {
		t.Fatalf("resolution = %+v", body.Resolution)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.lastReq.Source.Text != "New York" || svc.lastReq.Source.Lon != nil {
		t.Fatalf("source query = %+v", svc.lastReq.Source)
	}
	if svc.lastReq.Target.Lon == nil || *svc.lastReq.Target.Lon != -0.1 {
		t.Fatalf("target query = %+v", svc.lastReq.Target)
	}
}

func TestRouteFailuresAreReportedInBody(t *testing.T) {
	tests := []struct {
		status  string
		message string
	}{
		{status: core.StatusNoCoverage, message: "No Coverage"},
		{status: core.StatusNoPath, message: "Signal Lost"},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			svc := &fakeService{route: sim.RouteResponse{Status: tc.status, Message: tc.message}}
			h := NewRouter(svc, nil, Options{})

			rec := do(t, h, http.MethodPost, "/route", `{"source":{"lat":1},"target":{"lat":2}}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var body dto.RouteFailure
			decode(t, rec, &body)
			if body.Status != tc.status || body.Message != tc.message {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}

func TestRouteBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "not json", body: `{`, want: http.StatusBadRequest},
		{name: "two objects", body: `{"source":{"lat":1},"target":{"lat":2}}{}`, want: http.StatusBadRequest},
		{name: "missing source", body: `{"target":{"lat":2}}`, want: http.StatusBadRequest},
		{name: "non numeric lat with lon", body: `{"source":{"lat":"x","lon":2},"target":{"lat":2}}`, want: http.StatusBadRequest},
		{name: "nan lat", body: `{"source":{"lat":"NaN"},"target":{"lat":2}}`, want: http.StatusBadRequest},
		{name: "inf lat", body: `{"source":{"lat":"Inf"},"target":{"lat":2}}`, want: http.StatusBadRequest},
		{name: "nan lat with lon", body: `{"source":{"lat":"NaN","lon":1},"target":{"lat":2}}`, want: http.StatusBadRequest},
		{name: "service rejects", body: `{"source":{"lat":1},"target":{"lat":2}}`, err: fmt.Errorf("%w: bad", sim.ErrInvalidRequest), want: http.StatusBadRequest},
		{name: "service fails", body: `{"source":{"lat":1},"target":{"lat":2}}`, err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRouter(&fakeService{routeErr: tc.err}, nil, Options{})
			rec := do(t, h, http.MethodPost, "/route", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (body=%s)", rec.Code, tc.want, rec.Body.String())
			}
			var body dto.ErrorResponse
			decode(t, rec, &body)
			if body.Error == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestUnencodableResponseIsJSONError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/satellites", nil)
	rec := httptest.NewRecorder()
	writeJSON(rec, req, http.StatusOK, map[string]float64{"lat": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body dto.ErrorResponse
	decode(t, rec, &body)
	if body.Error == "" {
		t.Fatalf("expected error body, got %q", rec.Body.String())
	}
}

func TestToggleEndpoints(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, Options{})

	var weather dto.WeatherToggleResponse
	decode(t, do(t, h, http.MethodPost, "/toggle-weather", ""), &weather)
	if weather.Status != dto.WeatherStormy {
		t.Fatalf("first toggle = %q, want STORMY", weather.Status)
	}
	decode(t, do(t, h, http.MethodPost, "/toggle-weather", ""), &weather)
	if weather.Status != dto.WeatherClear {
		t.Fatalf("second toggle = %q, want CLEAR", weather.Status)
	}

	var storm dto.StormToggleResponse
	decode(t, do(t, h, http.MethodPost, "/toggle-storm", ""), &storm)
	if !storm.StormActive {
		t.Fatalf("storm_active = false, want true")
	}

	var st dto.StateResponse
	decode(t, do(t, h, http.MethodGet, "/state", ""), &st)
	if !st.StormActive || st.WeatherActive || len(st.WeatherZones) != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestMethodHandling(t *testing.T) {
	h := NewRouter(&fakeService{}, nil, Options{})

	rec := do(t, h, http.MethodOptions, "/route", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("allow methods = %q", got)
	}

	rec = do(t, h, http.MethodGet, "/route", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /route status = %d, want 405", rec.Code)
	}
}

func TestTopologyWebsocket(t *testing.T) {
	k := kb.NewKnowledgeBase()
	first := sampleTopology()
	k.Publish(first)

	hub := NewTopologyHub(k, nil)
	srv := httptest.NewServer(NewRouter(&fakeService{}, nil, Options{Hub: hub}))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/topology"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status = %d", resp.StatusCode)
	}

	readFrame := func() dto.SatellitesResponse {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var frame dto.SatellitesResponse
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return frame
	}

	if got := readFrame(); got.Meta.Count != 3 {
		t.Fatalf("initial frame count = %d, want 3", got.Meta.Count)
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })

	second := first
	second.Satellites = first.Satellites[:2]
	second.StormActive = true
	k.Publish(second)

	got := readFrame()
	if got.Meta.Count != 2 || !got.Meta.StormActive {
		t.Fatalf("second frame meta = %+v", got.Meta)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestTopologyHubCloseUnsubscribes(t *testing.T) {
	k := kb.NewKnowledgeBase()
	hub := NewTopologyHub(k, nil)
	if k.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", k.Subscribers())
	}
	hub.Close()
	if k.Subscribers() != 0 {
		t.Fatalf("subscribers after close = %d, want 0", k.Subscribers())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
