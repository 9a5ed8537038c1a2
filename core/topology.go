package core

import (
	"time"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// MaxLinkRangeKm is the straight-line range below which two satellites are
// considered to have an inter-satellite link.
const MaxLinkRangeKm = 2500.0

// BuildLinks returns every unordered pair of satellites whose ECEF distance is
// strictly below MaxLinkRangeKm. Pairs are emitted in snapshot order (i < j).
//
// The scan is O(N²). That is fine at the configured snapshot cap (150 by
// default) and is the first thing to revisit if the cap is raised.
func BuildLinks(sats []model.Satellite) []model.Link {
	type node struct {
		id  string
		pos Vec3
	}

	seen := make(map[string]struct{}, len(sats))
	nodes := make([]node, 0, len(sats))
	for _, s := range sats {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		nodes = append(nodes, node{id: s.ID, pos: SatelliteECEF(s)})
	}

	var links []model.Link
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if nodes[i].pos.DistanceTo(nodes[j].pos) < MaxLinkRangeKm {
				links = append(links, model.Link{A: nodes[i].id, B: nodes[j].id})
			}
		}
	}
	return links
}

// BuildTopology derives the reachability view for a snapshot under cfg.
func BuildTopology(sats []model.Satellite, cfg SimulationConfig, now time.Time) model.Topology {
	links := BuildLinks(sats)
	if links == nil {
		links = []model.Link{}
	}
	satellites := sats
	if satellites == nil {
		satellites = []model.Satellite{}
	}
	return model.Topology{
		Satellites:    satellites,
		Links:         links,
		Disabled:      cfg.FaultModel().DisabledSet(sats),
		GeneratedAt:   now.UTC(),
		StormActive:   cfg.SolarStorm,
		WeatherActive: cfg.WeatherActive(),
	}
}
