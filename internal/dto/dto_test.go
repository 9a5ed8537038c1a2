package dto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

func TestRouteRequestAcceptsNumbersAndStrings(t *testing.T) {
	body := `{"source":{"lat":40.7128,"lon":"-74.0060"},"target":{"lat":"London"}}`
	var req RouteRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := req.ToSim()
	if err != nil {
		t.Fatalf("ToSim: %v", err)
	}
	if out.Source.Text != "40.7128" || out.Source.Lon == nil || *out.Source.Lon != -74.006 {
		t.Fatalf("unexpected source %+v", out.Source)
	}
	if out.Target.Text != "London" || out.Target.Lon != nil {
		t.Fatalf("unexpected target %+v", out.Target)
	}
}

func TestRouteRequestNullLonIsAbsent(t *testing.T) {
	var req RouteRequest
	if err := json.Unmarshal([]byte(`{"source":{"lat":"51.5","lon":null},"target":{"lat":"0"}}`), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := req.ToSim()
	if err != nil {
		t.Fatalf("ToSim: %v", err)
	}
	if out.Source.Lon != nil {
		t.Fatalf("null lon should be treated as absent")
	}
}

func TestRouteRequestValidation(t *testing.T) {
	cases := map[string]string{
		"missing lat":       `{"source":{},"target":{"lat":"0"}}`,
		"lon not a number":  `{"source":{"lat":"1","lon":"east"},"target":{"lat":"0"}}`,
		"lat text with lon": `{"source":{"lat":"Paris","lon":2},"target":{"lat":"0"}}`,
		"nan lat":           `{"source":{"lat":"NaN"},"target":{"lat":"0"}}`,
		"inf lat with lon":  `{"source":{"lat":"Inf","lon":1},"target":{"lat":"0"}}`,
		"inf lon":           `{"source":{"lat":"1","lon":"-Inf"},"target":{"lat":"0"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var req RouteRequest
			if err := json.Unmarshal([]byte(body), &req); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if _, err := req.ToSim(); !errors.Is(err, ErrInvalidLocation) {
				t.Fatalf("expected ErrInvalidLocation, got %v", err)
			}
		})
	}
}

func TestFlexValueRejectsObjects(t *testing.T) {
	var req RouteRequest
	if err := json.Unmarshal([]byte(`{"source":{"lat":{"x":1}},"target":{"lat":"0"}}`), &req); err == nil {
		t.Fatalf("expected decode error for object lat")
	}
}

func TestSatellitesResponseShape(t *testing.T) {
	topo := model.Topology{
		Satellites:    []model.Satellite{{ID: "A", Lat: 1, Lon: 2, AltKm: 550, Load: 40}, {ID: "B"}},
		Links:         []model.Link{{A: "A", B: "B"}},
		Disabled:      []string{"B"},
		GeneratedAt:   time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
		StormActive:   true,
		WeatherActive: false,
	}
	raw, err := json.Marshal(NewSatellitesResponse(topo))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(raw)
	for _, want := range []string{
		`"links":[["A","B"]]`,
		`"count":2`,
		`"link_count":1`,
		`"max_link_range_km":2500`,
		`"timestamp":"2025-01-02T03:04:05Z"`,
		`"storm_active":true`,
		`"disabled_count":1`,
		`{"id":"A","lat":1,"lon":2,"alt":550,"load":40}`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
}

func TestRouteResponseVariants(t *testing.T) {
	res := sim.Resolution{SourceUsed: "Custom Coords", SourceCoords: [2]float64{1, 2}, TargetUsed: "Paris", TargetCoords: [2]float64{48.8, 2.3}}

	ok := NewRouteResponse(sim.RouteResponse{
		Status:     core.StatusSuccess,
		Result:     &model.RouteResult{Path: []string{"A"}, Hops: 0, LatencyMs: 0},
		Resolution: res,
	})
	raw, _ := json.Marshal(ok)
	if !strings.Contains(string(raw), `"hops":0`) || !strings.Contains(string(raw), `"source_coords":[1,2]`) {
		t.Fatalf("success body missing fields: %s", raw)
	}

	fail := NewRouteResponse(sim.RouteResponse{Status: core.StatusNoPath, Message: "Signal Lost", Resolution: res})
	raw, _ = json.Marshal(fail)
	if string(raw) != `{"status":"no_path","message":"Signal Lost","resolution":{"source_used":"Custom Coords","source_coords":[1,2],"target_used":"Paris","target_coords":[48.8,2.3]}}` {
		t.Fatalf("unexpected failure body %s", raw)
	}
}

func TestWeatherToggleResponse(t *testing.T) {
	if got := NewWeatherToggleResponse(core.SimulationConfig{Weather: core.DemoWeatherZones()}); got.Status != WeatherStormy {
		t.Fatalf("status = %q, want STORMY", got.Status)
	}
	if got := NewWeatherToggleResponse(core.SimulationConfig{}); got.Status != WeatherClear {
		t.Fatalf("status = %q, want CLEAR", got.Status)
	}
}
