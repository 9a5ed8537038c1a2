// Package geocode resolves route endpoints given either as coordinates or as
// free text place names.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/upstream"
	"github.com/signalsfoundry/leo-route-optimizer/model"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent    = "LEO_Hackathon_App"
	DefaultTimeout      = 2 * time.Second

	// CustomCoordsName labels endpoints given as an explicit lat/lon pair.
	CustomCoordsName = "Custom Coords"
)

// ErrInvalidQuery is returned when an explicit coordinate pair cannot be
// parsed.
var ErrInvalidQuery = errors.New("geocode: invalid coordinates")

// Query is one endpoint as submitted by a caller. Text holds the "lat" field
// verbatim, which may be a number or a place name. Lon is set only when the
// caller supplied one.
type Query struct {
	Text string
	Lon  *float64
}

// PlaceCache stores successful lookups keyed by query text.
type PlaceCache interface {
	GetPlace(ctx context.Context, key string) (model.Place, bool, error)
	PutPlace(ctx context.Context, key string, p model.Place) error
}

// Resolver turns queries into places. A failed lookup never fails the
// request: it yields (0, 0) named after the query with Resolved false.
type Resolver struct {
	client  *upstream.Client
	timeout time.Duration
	baseURL string
	cache   PlaceCache
	log     logging.Logger
	group   singleflight.Group
}

// NewResolver builds a Resolver against a Nominatim compatible search
// endpoint. cache may be nil.
func NewResolver(baseURL string, client *upstream.Client, cache PlaceCache, log logging.Logger) *Resolver {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if client == nil {
		client = upstream.New(DefaultTimeout, DefaultUserAgent)
		client.MaxAttempts = 1
	}
	if log == nil {
		log = logging.Noop()
	}
	timeout := DefaultTimeout
	if client.HTTP != nil && client.HTTP.Timeout > 0 {
		timeout = client.HTTP.Timeout * time.Duration(max(client.MaxAttempts, 1))
	}
	return &Resolver{client: client, timeout: timeout, baseURL: baseURL, cache: cache, log: log}
}

// Resolve maps q to a place.
//   - Lon present: the literal pair, named "Custom Coords".
//   - Text numeric: (value, 0) named "Coords(value,0.0)".
//   - Otherwise: a place name search.
//
// NaN or infinite coordinates return ErrInvalidQuery.
func (r *Resolver) Resolve(ctx context.Context, q Query) (model.Place, error) {
	text := strings.TrimSpace(q.Text)

	if q.Lon != nil {
		lat, numeric, err := ParseCoord(text)
		if !numeric || err != nil {
			return model.Place{}, fmt.Errorf("%w: lat %q", ErrInvalidQuery, q.Text)
		}
		if math.IsNaN(*q.Lon) || math.IsInf(*q.Lon, 0) {
			return model.Place{}, fmt.Errorf("%w: lon %v", ErrInvalidQuery, *q.Lon)
		}
		return model.Place{Point: model.GeoPoint{Lat: lat, Lon: *q.Lon}, Name: CustomCoordsName, Resolved: true}, nil
	}

	val, numeric, err := ParseCoord(text)
	if err != nil {
		return model.Place{}, fmt.Errorf("%w: lat %q", ErrInvalidQuery, q.Text)
	}
	if numeric {
		return model.Place{
			Point:    model.GeoPoint{Lat: val, Lon: 0},
			Name:     fmt.Sprintf("Coords(%s,0.0)", formatCoord(val)),
			Resolved: true,
		}, nil
	}

	place, err := r.lookup(ctx, text)
	if err != nil {
		r.log.Warn(ctx, "geocode lookup failed; using origin",
			logging.String("query", q.Text),
			logging.Err(err),
		)
		return model.Place{Point: model.GeoPoint{}, Name: q.Text, Resolved: false}, nil
	}
	return place, nil
}

func (r *Resolver) lookup(ctx context.Context, text string) (model.Place, error) {
	if text == "" {
		return model.Place{}, errors.New("empty query")
	}

	if r.cache != nil {
		if p, ok, err := r.cache.GetPlace(ctx, text); err != nil {
			r.log.Warn(ctx, "geocode cache read failed", logging.String("query", text), logging.Err(err))
		} else if ok {
			return p, nil
		}
	}

	// The flight is detached from ctx so a cancelled caller cannot fail the
	// lookups that joined it; each caller still stops waiting on its own ctx.
	ch := r.group.DoChan(text, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.search(fctx, text)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return model.Place{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return model.Place{}, res.Err
	}
	place := res.Val.(model.Place)

	if r.cache != nil {
		if err := r.cache.PutPlace(ctx, text, place); err != nil {
			r.log.Warn(ctx, "geocode cache write failed", logging.String("query", text), logging.Err(err))
		}
	}
	return place, nil
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (r *Resolver) search(ctx context.Context, text string) (model.Place, error) {
	body, err := r.client.Get(ctx, r.baseURL, url.Values{
		"q":      {text},
		"format": {"json"},
		"limit":  {"1"},
	})
	if err != nil {
		return model.Place{}, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return model.Place{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return model.Place{}, fmt.Errorf("no geocode results for %q", text)
	}

	lat, latOK, latErr := ParseCoord(results[0].Lat)
	lon, lonOK, lonErr := ParseCoord(results[0].Lon)
	if !latOK || !lonOK || latErr != nil || lonErr != nil {
		return model.Place{}, fmt.Errorf("geocode result has bad coordinates %q,%q", results[0].Lat, results[0].Lon)
	}

	name, _, _ := strings.Cut(results[0].DisplayName, ",")
	return model.Place{Point: model.GeoPoint{Lat: lat, Lon: lon}, Name: strings.TrimSpace(name), Resolved: true}, nil
}

// ParseCoord parses s as a decimal coordinate. numeric is false when s is not
// a number at all, which callers treat as a place name. NaN and infinities
// are numeric but return ErrInvalidQuery.
func ParseCoord(s string) (v float64, numeric bool, err error) {
	v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if perr != nil {
		return 0, false, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, fmt.Errorf("%w: %q is not finite", ErrInvalidQuery, s)
	}
	return v, true, nil
}

// formatCoord prints whole numbers with a trailing ".0" so 51 renders as 51.0.
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}
