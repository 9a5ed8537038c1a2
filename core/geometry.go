package core

import (
	"math"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// EarthRadiusKm is the mean Earth radius used for all simple
// geometry calculations in the routing layer (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// GeodeticToECEF converts latitude/longitude in degrees and altitude in
// kilometres to Earth-centred Cartesian coordinates on a spherical Earth.
func GeodeticToECEF(latDeg, lonDeg, altKm float64) Vec3 {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	r := EarthRadiusKm + altKm
	return Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// SatelliteECEF returns the Earth-centred position of s.
func SatelliteECEF(s model.Satellite) Vec3 {
	return GeodeticToECEF(s.Lat, s.Lon, s.AltKm)
}

// PlanarDistanceDeg is the Euclidean distance in degree space between two
// lat/lon pairs. It is deliberately not a great-circle distance: nearest-node
// search, edge weights and weather radii all use this flat approximation.
func PlanarDistanceDeg(lat1, lon1, lat2, lon2 float64) float64 {
	dlat := lat1 - lat2
	dlon := lon1 - lon2
	return math.Sqrt(dlat*dlat + dlon*dlon)
}

func finitePoint(p model.GeoPoint) bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) && !math.IsInf(p.Lat, 0) && !math.IsInf(p.Lon, 0)
}
