package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// HopLatencyMs is the fixed per-hop latency used by the simulation.
const HopLatencyMs = 12

// FindRoute computes the least-cost route between two ground points over a
// single snapshot. Weather penalties at both ends compound multiplicatively
// into the latency estimate.
//
// Entry and exit satellites are picked from the full snapshot, including
// satellites that the fault model removes from the graph; such a pick fails
// later with ErrNoPath rather than silently choosing a different satellite.
func FindRoute(src, dst model.GeoPoint, sats []model.Satellite, links []model.Link, cfg SimulationConfig) (res model.RouteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = model.RouteResult{}
			err = fmt.Errorf("%w: route computation aborted: %v", ErrNoPath, r)
		}
	}()

	if !finitePoint(src) || !finitePoint(dst) {
		return model.RouteResult{}, fmt.Errorf("%w: endpoint coordinates are not finite", ErrNoCoverage)
	}

	weather := cfg.WeatherModel()
	srcPenalty := weather.Penalty(src.Lat, src.Lon)
	dstPenalty := weather.Penalty(dst.Lat, dst.Lon)

	start, ok := NearestSatellite(sats, src)
	if !ok {
		return model.RouteResult{}, fmt.Errorf("%w: no satellite near source", ErrNoCoverage)
	}
	end, ok := NearestSatellite(sats, dst)
	if !ok {
		return model.RouteResult{}, fmt.Errorf("%w: no satellite near target", ErrNoCoverage)
	}

	graph := BuildRoutingGraph(sats, links, cfg.FaultModel())
	path, _, found := graph.ShortestPath(start, end)
	if !found {
		return model.RouteResult{}, fmt.Errorf("%w: %s -> %s", ErrNoPath, start, end)
	}

	hops := len(path) - 1
	base := float64(hops * HopLatencyMs)
	return model.RouteResult{
		Path:          path,
		Hops:          hops,
		LatencyMs:     int(base * srcPenalty * dstPenalty),
		WeatherAlert:  srcPenalty > 1.0 || dstPenalty > 1.0,
		StormActive:   cfg.SolarStorm,
		SourcePenalty: srcPenalty,
		TargetPenalty: dstPenalty,
	}, nil
}

// NearestSatellite returns the ID of the satellite closest to p in planar
// degree distance. Ties keep the earliest satellite in snapshot order.
func NearestSatellite(sats []model.Satellite, p model.GeoPoint) (string, bool) {
	best := ""
	bestDist := math.Inf(1)
	for _, s := range sats {
		d := PlanarDistanceDeg(s.Lat, s.Lon, p.Lat, p.Lon)
		if d < bestDist {
			best, bestDist = s.ID, d
		}
	}
	return best, best != ""
}
