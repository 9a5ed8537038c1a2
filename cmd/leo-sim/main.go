// Command leo-sim computes a topology or a single route offline from a TLE
// file, without any network access.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/ephemeris"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/model"
	"github.com/signalsfoundry/leo-route-optimizer/timectrl"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "leo-sim:", err)
		os.Exit(1)
	}
}

// summary is printed when no route is requested.
type summary struct {
	Meta       dto.TopologyMeta  `json:"meta"`
	Satellites []model.Satellite `json:"satellites,omitempty"`
	Links      []model.Link      `json:"links,omitempty"`
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("leo-sim", flag.ContinueOnError)
	tlePath := fs.String("tle", "", "TLE catalog file (required)")
	at := fs.String("at", "", "propagation time, RFC3339 (default now)")
	maxSats := fs.Int("max", ephemeris.DefaultMaxSatellites, "maximum satellites to propagate")
	weather := fs.Bool("weather", false, "install the demo weather zone")
	storm := fs.Bool("storm", false, "enable the solar storm fault model")
	seed := fs.Uint64("seed", 0, "fault selection seed")
	loadSeed := fs.Int64("load-seed", 1, "traffic load seed")
	from := fs.String("from", "", "route source as lat,lon")
	to := fs.String("to", "", "route target as lat,lon")
	full := fs.Bool("full", false, "include satellites and links in the topology summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tlePath == "" {
		return errors.New("-tle is required")
	}
	if (*from == "") != (*to == "") {
		return errors.New("-from and -to must be given together")
	}

	now := time.Now().UTC()
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		now = t.UTC()
	}

	provider := ephemeris.NewProvider(ephemeris.FileSource{Path: *tlePath}, ephemeris.Options{
		MaxSatellites: *maxSats,
		LoadSeed:      *loadSeed,
		Clock:         timectrl.NewFixedClock(now),
		Logger:        logging.Noop(),
	})
	sats, err := provider.Snapshot(context.Background())
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	cfg := core.SimulationConfig{FaultSeed: *seed}
	if *weather {
		cfg = cfg.ToggleWeather(nil)
	}
	if *storm {
		cfg = cfg.ToggleSolarStorm()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if *from == "" {
		topo := core.BuildTopology(sats, cfg, now)
		resp := dto.NewSatellitesResponse(topo)
		s := summary{Meta: resp.Meta}
		if *full {
			s.Satellites, s.Links = resp.Satellites, resp.Links
		}
		return enc.Encode(s)
	}

	src, err := parsePoint(*from)
	if err != nil {
		return fmt.Errorf("parse -from: %w", err)
	}
	dst, err := parsePoint(*to)
	if err != nil {
		return fmt.Errorf("parse -to: %w", err)
	}

	links := core.BuildLinks(sats)
	result, routeErr := core.FindRoute(src, dst, sats, links, cfg)
	failure := core.Classify(routeErr)
	resp := sim.RouteResponse{
		Status:  failure.Status,
		Message: failure.Message,
		Err:     routeErr,
		Resolution: sim.Resolution{
			SourceUsed:   *from,
			SourceCoords: [2]float64{src.Lat, src.Lon},
			TargetUsed:   *to,
			TargetCoords: [2]float64{dst.Lat, dst.Lon},
		},
	}
	if routeErr == nil {
		resp.Result = &result
	}
	return enc.Encode(dto.NewRouteResponse(resp))
}

func parsePoint(s string) (model.GeoPoint, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return model.GeoPoint{}, fmt.Errorf("%q is not lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return model.GeoPoint{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return model.GeoPoint{}, err
	}
	return model.GeoPoint{Lat: lat, Lon: lon}, nil
}
