package core

import (
	"slices"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// SimulationConfig carries the externally toggled simulation inputs. It is
// passed by value into every topology and route computation; the hosting
// layer owns storage and swaps whole values when a toggle fires.
type SimulationConfig struct {
	Weather    []model.WeatherZone `json:"weather"`
	SolarStorm bool                `json:"solar_storm"`
	FaultSeed  uint64              `json:"fault_seed"`
}

// DemoWeatherZones is the fixed storm set installed by the weather toggle.
func DemoWeatherZones() []model.WeatherZone {
	return []model.WeatherZone{{Lat: 35.0, Lon: -40.0, RadiusKm: 1000, Intensity: 0.8}}
}

// WeatherActive reports whether any degradation zone is installed.
func (c SimulationConfig) WeatherActive() bool {
	return len(c.Weather) > 0
}

// ToggleWeather flips between clear skies and the demo zone set. An empty
// demo set falls back to DemoWeatherZones.
func (c SimulationConfig) ToggleWeather(demo []model.WeatherZone) SimulationConfig {
	next := c.Clone()
	if next.WeatherActive() {
		next.Weather = nil
		return next
	}
	if len(demo) == 0 {
		demo = DemoWeatherZones()
	}
	next.Weather = slices.Clone(demo)
	return next
}

// ToggleSolarStorm flips the fault flag.
func (c SimulationConfig) ToggleSolarStorm() SimulationConfig {
	next := c.Clone()
	next.SolarStorm = !next.SolarStorm
	return next
}

// Clone returns a deep copy so callers never share the zone slice.
func (c SimulationConfig) Clone() SimulationConfig {
	out := c
	if c.Weather != nil {
		out.Weather = slices.Clone(c.Weather)
	}
	return out
}

// Equal reports whether two configs describe the same simulation inputs.
// A nil and an empty zone list are treated as equal.
func (c SimulationConfig) Equal(other SimulationConfig) bool {
	return c.SolarStorm == other.SolarStorm &&
		c.FaultSeed == other.FaultSeed &&
		slices.Equal(c.Weather, other.Weather)
}

// WeatherModel returns the weather view of the config.
func (c SimulationConfig) WeatherModel() WeatherModel {
	return WeatherModel{Zones: c.Weather}
}

// FaultModel returns the fault view of the config.
func (c SimulationConfig) FaultModel() FaultModel {
	return FaultModel{Active: c.SolarStorm, Seed: c.FaultSeed}
}
