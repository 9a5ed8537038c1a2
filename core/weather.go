package core

import "github.com/signalsfoundry/leo-route-optimizer/model"

const (
	// KmPerDegree converts a zone radius to an approximate degree radius.
	KmPerDegree = 111.0
	// WeatherIntensityScale is the penalty added per unit of zone intensity.
	WeatherIntensityScale = 10.0
)

// WeatherModel answers rain-fade penalty queries for a set of active zones.
type WeatherModel struct {
	Zones []model.WeatherZone
}

// Penalty returns the latency multiplier at (lat, lon). It starts at 1.0 and
// every zone containing the point adds intensity*10, so overlapping zones
// stack. Containment uses planar degree distance against radius/111.
func (w WeatherModel) Penalty(lat, lon float64) float64 {
	penalty := 1.0
	for _, z := range w.Zones {
		radiusDeg := z.RadiusKm / KmPerDegree
		if PlanarDistanceDeg(lat, lon, z.Lat, z.Lon) < radiusDeg {
			penalty += z.Intensity * WeatherIntensityScale
		}
	}
	return penalty
}

// Alert reports whether the point is degraded by any zone.
func (w WeatherModel) Alert(lat, lon float64) bool {
	return w.Penalty(lat, lon) > 1.0
}
