package model

// GeoPoint is a ground coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place is a resolved endpoint: the coordinate actually used for routing and
// a display name echoed back to the caller.
type Place struct {
	Point    GeoPoint `json:"point"`
	Name     string   `json:"name"`
	Resolved bool     `json:"resolved"`
}

// WeatherZone is a circular region of signal degradation.
type WeatherZone struct {
	Lat       float64 `json:"lat" yaml:"lat"`
	Lon       float64 `json:"lon" yaml:"lon"`
	RadiusKm  float64 `json:"radius_km" yaml:"radius_km"`
	Intensity float64 `json:"intensity" yaml:"intensity"` // 0..1
}

// RouteResult is the computed route between two ground endpoints. Path
// includes the entry and exit satellites.
type RouteResult struct {
	Path          []string `json:"path"`
	Hops          int      `json:"hops"`
	LatencyMs     int      `json:"latency_ms"`
	WeatherAlert  bool     `json:"weather_alert"`
	StormActive   bool     `json:"storm_active"`
	SourcePenalty float64  `json:"source_penalty"`
	TargetPenalty float64  `json:"target_penalty"`
}
