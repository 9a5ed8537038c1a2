package state

import (
	"context"
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
)

const (
	// DefaultConsulKey is where the configuration lives in the KV store.
	DefaultConsulKey = "leo-router/simulation/config"

	maxCASAttempts = 8
)

// ConsulStore shares the configuration between router replicas through the
// Consul KV store. Updates use check-and-set on the key's ModifyIndex.
type ConsulStore struct {
	kv      *consulapi.KV
	key     string
	initial core.SimulationConfig
	log     logging.Logger
}

// NewConsulStore connects to the agent at addr (empty for the default
// agent address). initial is reported while the key does not exist yet.
func NewConsulStore(addr, key string, initial core.SimulationConfig, log logging.Logger) (*ConsulStore, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if key == "" {
		key = DefaultConsulKey
	}
	if log == nil {
		log = logging.Noop()
	}
	return &ConsulStore{kv: cli.KV(), key: key, initial: initial.Clone(), log: log}, nil
}

func (s *ConsulStore) Load(ctx context.Context) (core.SimulationConfig, error) {
	cfg, _, err := s.get(ctx)
	return cfg, err
}

func (s *ConsulStore) Update(ctx context.Context, fn UpdateFunc) (core.SimulationConfig, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		cur, index, err := s.get(ctx)
		if err != nil {
			return core.SimulationConfig{}, err
		}
		next := fn(cur)

		raw, err := json.Marshal(next)
		if err != nil {
			return core.SimulationConfig{}, fmt.Errorf("encode simulation config: %w", err)
		}
		opts := (&consulapi.WriteOptions{}).WithContext(ctx)
		ok, _, err := s.kv.CAS(&consulapi.KVPair{Key: s.key, Value: raw, ModifyIndex: index}, opts)
		if err != nil {
			return core.SimulationConfig{}, fmt.Errorf("consul cas %s: %w", s.key, err)
		}
		if ok {
			return next, nil
		}
		s.log.Debug(ctx, "simulation config cas lost; retrying",
			logging.String("key", s.key),
			logging.Int("attempt", attempt),
		)
	}
	return core.SimulationConfig{}, fmt.Errorf("%w: key %s", ErrConflict, s.key)
}

// get returns the stored configuration and its ModifyIndex. A missing key
// yields the initial configuration with index 0, which makes the first CAS a
// create-if-absent.
func (s *ConsulStore) get(ctx context.Context) (core.SimulationConfig, uint64, error) {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	pair, _, err := s.kv.Get(s.key, opts)
	if err != nil {
		return core.SimulationConfig{}, 0, fmt.Errorf("consul get %s: %w", s.key, err)
	}
	if pair == nil {
		return s.initial.Clone(), 0, nil
	}

	var cfg core.SimulationConfig
	if err := json.Unmarshal(pair.Value, &cfg); err != nil {
		return core.SimulationConfig{}, 0, fmt.Errorf("decode simulation config: %w", err)
	}
	return cfg, pair.ModifyIndex, nil
}
