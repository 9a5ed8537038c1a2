package dto

import (
	"time"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// Weather toggle states.
const (
	WeatherStormy = "STORMY"
	WeatherClear  = "CLEAR"
)

type TopologyMeta struct {
	Count          int      `json:"count"`
	LinkCount      int      `json:"link_count"`
	MaxLinkRangeKm float64  `json:"max_link_range_km"`
	Timestamp      string   `json:"timestamp"`
	StormActive    bool     `json:"storm_active"`
	WeatherActive  bool     `json:"weather_active"`
	DisabledCount  int      `json:"disabled_count"`
	Disabled       []string `json:"disabled"`
}

// SatellitesResponse is the body of GET /satellites and of each topology
// frame on the websocket stream.
type SatellitesResponse struct {
	Satellites []model.Satellite `json:"satellites"`
	Links      []model.Link      `json:"links"`
	Meta       TopologyMeta      `json:"meta"`
}

func NewSatellitesResponse(t model.Topology) SatellitesResponse {
	sats := t.Satellites
	if sats == nil {
		sats = []model.Satellite{}
	}
	links := t.Links
	if links == nil {
		links = []model.Link{}
	}
	disabled := t.Disabled
	if disabled == nil {
		disabled = []string{}
	}
	return SatellitesResponse{
		Satellites: sats,
		Links:      links,
		Meta: TopologyMeta{
			Count:          len(sats),
			LinkCount:      len(links),
			MaxLinkRangeKm: core.MaxLinkRangeKm,
			Timestamp:      t.GeneratedAt.UTC().Format(time.RFC3339),
			StormActive:    t.StormActive,
			WeatherActive:  t.WeatherActive,
			DisabledCount:  len(disabled),
			Disabled:       disabled,
		},
	}
}

type Resolution = sim.Resolution

// RouteSuccess is returned when a path was found.
type RouteSuccess struct {
	Status       string     `json:"status"`
	Path         []string   `json:"path"`
	Hops         int        `json:"hops"`
	LatencyMs    int        `json:"latency_ms"`
	WeatherAlert bool       `json:"weather_alert"`
	StormActive  bool       `json:"storm_active"`
	Resolution   Resolution `json:"resolution"`
}

// RouteFailure is returned for "error" (No Coverage) and "no_path"
// (Signal Lost) outcomes.
type RouteFailure struct {
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	Resolution Resolution `json:"resolution"`
}

// NewRouteResponse renders a service response as either RouteSuccess or
// RouteFailure.
func NewRouteResponse(resp sim.RouteResponse) any {
	if resp.Status == core.StatusSuccess && resp.Result != nil {
		return RouteSuccess{
			Status:       core.StatusSuccess,
			Path:         resp.Result.Path,
			Hops:         resp.Result.Hops,
			LatencyMs:    resp.Result.LatencyMs,
			WeatherAlert: resp.Result.WeatherAlert,
			StormActive:  resp.Result.StormActive,
			Resolution:   resp.Resolution,
		}
	}
	return RouteFailure{Status: resp.Status, Message: resp.Message, Resolution: resp.Resolution}
}

type WeatherToggleResponse struct {
	Status string `json:"status"`
}

func NewWeatherToggleResponse(cfg core.SimulationConfig) WeatherToggleResponse {
	if cfg.WeatherActive() {
		return WeatherToggleResponse{Status: WeatherStormy}
	}
	return WeatherToggleResponse{Status: WeatherClear}
}

type StormToggleResponse struct {
	StormActive bool `json:"storm_active"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	WeatherActive bool                `json:"weather_active"`
	WeatherZones  []model.WeatherZone `json:"weather_zones"`
	StormActive   bool                `json:"storm_active"`
	FaultSeed     uint64              `json:"fault_seed"`
}

func NewStateResponse(cfg core.SimulationConfig) StateResponse {
	zones := cfg.Weather
	if zones == nil {
		zones = []model.WeatherZone{}
	}
	return StateResponse{
		WeatherActive: cfg.WeatherActive(),
		WeatherZones:  zones,
		StormActive:   cfg.SolarStorm,
		FaultSeed:     cfg.FaultSeed,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}
