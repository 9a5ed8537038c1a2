// Package dto holds the JSON shapes exchanged with API clients. Both the
// HTTP API and the gRPC Struct payloads use them, so the two transports
// agree on field names.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/leo-route-optimizer/internal/geocode"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
)

// ErrInvalidLocation reports a malformed endpoint in a route request.
var ErrInvalidLocation = errors.New("invalid location")

// FlexValue accepts either a JSON number or a JSON string and keeps its text.
type FlexValue string

func (f *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected number or string, got %s", data)
	}
	*f = FlexValue(n.String())
	return nil
}

// LocationInput is one route endpoint. Lat may hold a number or a place name;
// Lon is optional and, when present, makes Lat a literal latitude.
type LocationInput struct {
	Lat FlexValue  `json:"lat"`
	Lon *FlexValue `json:"lon,omitempty"`
}

// RouteRequest is the body of POST /route.
type RouteRequest struct {
	Source LocationInput `json:"source"`
	Target LocationInput `json:"target"`
}

// ToSim validates the request and converts it into a service request.
func (r RouteRequest) ToSim() (sim.RouteRequest, error) {
	src, err := r.Source.query("source")
	if err != nil {
		return sim.RouteRequest{}, err
	}
	dst, err := r.Target.query("target")
	if err != nil {
		return sim.RouteRequest{}, err
	}
	return sim.RouteRequest{Source: src, Target: dst}, nil
}

func (l LocationInput) query(field string) (geocode.Query, error) {
	text := strings.TrimSpace(string(l.Lat))
	if text == "" {
		return geocode.Query{}, fmt.Errorf("%w: %s.lat is required", ErrInvalidLocation, field)
	}
	_, latNumeric, err := geocode.ParseCoord(text)
	if err != nil {
		return geocode.Query{}, fmt.Errorf("%w: %s.lat %q is not a finite number", ErrInvalidLocation, field, text)
	}
	q := geocode.Query{Text: text}
	if l.Lon != nil && strings.TrimSpace(string(*l.Lon)) != "" {
		lon, lonNumeric, err := geocode.ParseCoord(string(*l.Lon))
		if !lonNumeric || err != nil {
			return geocode.Query{}, fmt.Errorf("%w: %s.lon %q is not a finite number", ErrInvalidLocation, field, *l.Lon)
		}
		if !latNumeric {
			return geocode.Query{}, fmt.Errorf("%w: %s.lat %q is not a number", ErrInvalidLocation, field, text)
		}
		q.Lon = &lon
	}
	return q, nil
}
