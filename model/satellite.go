package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Satellite is one entry of a position snapshot. Positions are geodetic
// (degrees, kilometres above a spherical Earth) and Load is a simulated
// traffic sample in percent.
type Satellite struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	AltKm float64 `json:"alt"`
	Load  int     `json:"load"`
}

// Link is an unordered pair of satellite IDs that are within range of each
// other. It encodes as a two element JSON array.
type Link struct {
	A string
	B string
}

func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.A, l.B})
}

func (l *Link) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("link must have exactly two endpoints, got %d", len(pair))
	}
	l.A, l.B = pair[0], pair[1]
	return nil
}

// Topology is the reachability view of a single snapshot.
type Topology struct {
	Satellites  []Satellite `json:"satellites"`
	Links       []Link      `json:"links"`
	Disabled    []string    `json:"disabled"`
	GeneratedAt time.Time   `json:"generated_at"`
	// Toggle state the topology was built under.
	StormActive   bool `json:"storm_active"`
	WeatherActive bool `json:"weather_active"`
}
