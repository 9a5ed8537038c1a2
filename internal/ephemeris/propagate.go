package ephemeris

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// orbit is a parsed element set ready for SGP4.
type orbit struct {
	name string
	sat  satellite.Satellite
}

// newOrbit parses the element set. go-satellite panics on malformed lines,
// which is turned into an error here.
func newOrbit(t TLE) (o orbit, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse tle %q: %v", t.Name, r)
		}
	}()
	sat := satellite.TLEToSat(t.Line1, t.Line2, satellite.GravityWGS72)
	return orbit{name: t.Name, sat: sat}, nil
}

// position propagates the orbit to at and converts the result to geodetic
// latitude/longitude in degrees and altitude in km. ok is false when SGP4
// produced no usable state.
func (o orbit) position(at time.Time) (lat, lon, altKm float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	posECI, _ := satellite.Propagate(o.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	alt, _, ll := satellite.ECIToLLA(posECI, gmst)

	lat = ll.Latitude * 180 / math.Pi
	lon = normalizeLon(ll.Longitude * 180 / math.Pi)
	if !finite(lat) || !finite(lon) || !finite(alt) || alt <= 0 {
		return 0, 0, 0, false
	}
	return lat, lon, alt, true
}

func (o orbit) snapshotEntry(at time.Time, load int) (model.Satellite, bool) {
	lat, lon, alt, ok := o.position(at)
	if !ok {
		return model.Satellite{}, false
	}
	return model.Satellite{ID: o.name, Lat: lat, Lon: lon, AltKm: alt, Load: load}, true
}

// normalizeLon maps any longitude into [-180, 180).
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
