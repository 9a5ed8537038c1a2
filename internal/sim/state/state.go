// Package state holds the shared simulation configuration (weather and
// solar storm toggles) that every routing request reads.
package state

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
)

// ErrConflict is returned when an update keeps losing concurrent
// check-and-set races.
var ErrConflict = errors.New("simulation state: update conflict")

// UpdateFunc derives the next configuration from the current one. It must be
// pure: it may run more than once per Update.
type UpdateFunc func(core.SimulationConfig) core.SimulationConfig

// Store is the source of truth for the simulation configuration. Readers
// always observe a complete configuration; updates are atomic.
type Store interface {
	Load(ctx context.Context) (core.SimulationConfig, error)
	Update(ctx context.Context, fn UpdateFunc) (core.SimulationConfig, error)
}

// MemoryStore keeps the configuration in process.
type MemoryStore struct {
	mu  sync.Mutex // serialises writers
	cur atomic.Pointer[core.SimulationConfig]
	log logging.Logger
}

// NewMemoryStore returns a store holding initial.
func NewMemoryStore(initial core.SimulationConfig, log logging.Logger) *MemoryStore {
	if log == nil {
		log = logging.Noop()
	}
	s := &MemoryStore{log: log}
	cfg := initial.Clone()
	s.cur.Store(&cfg)
	return s
}

func (s *MemoryStore) Load(context.Context) (core.SimulationConfig, error) {
	return s.cur.Load().Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, fn UpdateFunc) (core.SimulationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.cur.Load().Clone())
	stored := next.Clone()
	s.cur.Store(&stored)

	s.log.Debug(ctx, "simulation config updated",
		logging.Bool("weather_active", next.WeatherActive()),
		logging.Bool("solar_storm", next.SolarStorm),
	)
	return next, nil
}
