package core

import "testing"

func TestToggleWeatherIdempotentPair(t *testing.T) {
	base := SimulationConfig{FaultSeed: 3}
	stormy := base.ToggleWeather(nil)
	if !stormy.WeatherActive() || len(stormy.Weather) != 1 {
		t.Fatalf("expected demo zone after toggle, got %+v", stormy.Weather)
	}
	if stormy.Weather[0] != DemoWeatherZones()[0] {
		t.Fatalf("unexpected demo zone %+v", stormy.Weather[0])
	}
	back := stormy.ToggleWeather(nil)
	if !back.Equal(base) {
		t.Fatalf("double toggle = %+v, want %+v", back, base)
	}
	if base.WeatherActive() {
		t.Fatalf("toggle mutated the original config")
	}
}

func TestToggleSolarStormIdempotentPair(t *testing.T) {
	base := SimulationConfig{}
	on := base.ToggleSolarStorm()
	if !on.SolarStorm {
		t.Fatalf("expected storm on")
	}
	if off := on.ToggleSolarStorm(); !off.Equal(base) {
		t.Fatalf("double toggle = %+v, want %+v", off, base)
	}
}

func TestCloneDoesNotShareZones(t *testing.T) {
	cfg := SimulationConfig{}.ToggleWeather(nil)
	clone := cfg.Clone()
	clone.Weather[0].Intensity = 0.1
	if cfg.Weather[0].Intensity != 0.8 {
		t.Fatalf("clone shares zone storage with original")
	}
}
