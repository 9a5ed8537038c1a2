package state

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/signalsfoundry/leo-route-optimizer/core"
)

// fakeKV implements the subset of the Consul KV HTTP API the store uses.
type fakeKV struct {
	mu        sync.Mutex
	values    map[string][]byte
	indexes   map[string]uint64
	nextIndex uint64
	// rejectCAS makes the next n CAS writes fail as if another writer won.
	rejectCAS int
	casCalls  int
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string][]byte{}, indexes: map[string]uint64{}, nextIndex: 10}
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
	w.Header().Set("X-Consul-Index", "1")
	w.Header().Set("X-Consul-KnownLeader", "true")
	w.Header().Set("X-Consul-LastContact", "0")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		val, ok := f.values[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]*consulapi.KVPair{{
			Key:         key,
			Value:       val,
			ModifyIndex: f.indexes[key],
			CreateIndex: f.indexes[key],
		}})
	case http.MethodPut:
		f.casCalls++
		body, _ := io.ReadAll(r.Body)
		cas, err := strconv.ParseUint(r.URL.Query().Get("cas"), 10, 64)
		if err != nil {
			http.Error(w, "cas required", http.StatusBadRequest)
			return
		}
		if f.rejectCAS > 0 {
			f.rejectCAS--
			_, _ = w.Write([]byte("false"))
			return
		}
		if cas != f.indexes[key] {
			_, _ = w.Write([]byte("false"))
			return
		}
		f.nextIndex++
		f.values[key] = body
		f.indexes[key] = f.nextIndex
		_, _ = w.Write([]byte("true"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newConsulTestStore(t *testing.T, kv *fakeKV, initial core.SimulationConfig) *ConsulStore {
	t.Helper()
	srv := httptest.NewServer(kv)
	t.Cleanup(srv.Close)
	s, err := NewConsulStore(srv.URL, "", initial, nil)
	if err != nil {
		t.Fatalf("NewConsulStore: %v", err)
	}
	return s
}

func TestConsulStoreLoadMissingKeyReturnsInitial(t *testing.T) {
	initial := core.SimulationConfig{FaultSeed: 9}
	s := newConsulTestStore(t, newFakeKV(), initial)

	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Equal(initial) {
		t.Fatalf("Load = %+v, want %+v", cfg, initial)
	}
}

func TestConsulStoreUpdateRoundTrips(t *testing.T) {
	kv := newFakeKV()
	s := newConsulTestStore(t, kv, core.SimulationConfig{})
	ctx := context.Background()

	cfg, err := s.Update(ctx, func(c core.SimulationConfig) core.SimulationConfig { return c.ToggleSolarStorm() })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !cfg.SolarStorm {
		t.Fatalf("storm should be active")
	}

	cfg, err = s.Update(ctx, func(c core.SimulationConfig) core.SimulationConfig { return c.ToggleWeather(nil) })
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.SolarStorm || !loaded.WeatherActive() || !loaded.Equal(cfg) {
		t.Fatalf("Load = %+v, want %+v", loaded, cfg)
	}
	if _, ok := kv.values[DefaultConsulKey]; !ok {
		t.Fatalf("expected value under %s", DefaultConsulKey)
	}
}

func TestConsulStoreRetriesLostCAS(t *testing.T) {
	kv := newFakeKV()
	kv.rejectCAS = 2
	s := newConsulTestStore(t, kv, core.SimulationConfig{})

	cfg, err := s.Update(context.Background(), func(c core.SimulationConfig) core.SimulationConfig { return c.ToggleSolarStorm() })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !cfg.SolarStorm {
		t.Fatalf("storm should be active")
	}
	if kv.casCalls != 3 {
		t.Fatalf("cas calls = %d, want 3", kv.casCalls)
	}
}

func TestConsulStoreGivesUpAfterRepeatedConflicts(t *testing.T) {
	kv := newFakeKV()
	kv.rejectCAS = maxCASAttempts
	s := newConsulTestStore(t, kv, core.SimulationConfig{})

	_, err := s.Update(context.Background(), func(c core.SimulationConfig) core.SimulationConfig { return c.ToggleSolarStorm() })
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
