// Package config loads router settings from defaults, an optional YAML file,
// an optional .env file and LEO_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// State backends.
const (
	StateMemory = "memory"
	StateConsul = "consul"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
	Ephemeris  EphemerisConfig  `yaml:"ephemeris"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Cache      CacheConfig      `yaml:"cache"`
	State      StateConfig      `yaml:"state"`
	Simulation SimulationConfig `yaml:"simulation"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	// Addr is the /metrics listener. Empty disables it.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EphemerisConfig struct {
	// TLEFile, when set, replaces the network catalog.
	TLEFile       string        `yaml:"tle_file"`
	TLEURL        string        `yaml:"tle_url"`
	MaxSatellites int           `yaml:"max_satellites"`
	CatalogTTL    time.Duration `yaml:"catalog_ttl"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	// FetchBudget bounds one catalog fetch including retries and must stay
	// below http.write_timeout.
	FetchBudget   time.Duration `yaml:"fetch_budget"`
	RetryCooldown time.Duration `yaml:"retry_cooldown"`
	LoadSeed      int64         `yaml:"load_seed"`
}

type GeocodeConfig struct {
	URL       string        `yaml:"url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"`
	// DSN is the sqlite path or postgres connection string.
	DSN      string        `yaml:"dsn"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type StateConfig struct {
	Backend    string `yaml:"backend"`
	ConsulAddr string `yaml:"consul_addr"`
	ConsulKey  string `yaml:"consul_key"`
}

type SimulationConfig struct {
	FaultSeed       uint64        `yaml:"fault_seed"`
	PublishInterval time.Duration `yaml:"publish_interval"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		GRPC:    GRPCConfig{Addr: ":50051"},
		Metrics: MetricsConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Ephemeris: EphemerisConfig{
			TLEURL:        "https://celestrak.org/NORAD/elements/gp.php?GROUP=starlink&FORMAT=tle",
			MaxSatellites: 150,
			CatalogTTL:    6 * time.Hour,
			FetchTimeout:  10 * time.Second,
			FetchBudget:   20 * time.Second,
			RetryCooldown: time.Minute,
		},
		Geocode: GeocodeConfig{
			URL:       "https://nominatim.openstreetmap.org/search",
			UserAgent: "LEO_Hackathon_App",
			Timeout:   2 * time.Second,
		},
		Cache: CacheConfig{Backend: CacheMemory, TTL: 24 * time.Hour},
		State: StateConfig{
			Backend:    StateMemory,
			ConsulAddr: "127.0.0.1:8500",
			ConsulKey:  "leo-router/simulation/config",
		},
		Simulation: SimulationConfig{PublishInterval: 5 * time.Second},
		Tracing: TracingConfig{
			ServiceName: "leo-router",
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), the .env file at envFile (skipped when missing) and the process
// environment.
func Load(path, envFile string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with any LEO_* variables visible through lookup.
// LOG_LEVEL and LOG_FORMAT are honoured as well.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.setString("LEO_HTTP_ADDR", &cfg.HTTP.Addr)
	e.setString("LEO_GRPC_ADDR", &cfg.GRPC.Addr)
	e.setString("LEO_METRICS_ADDR", &cfg.Metrics.Addr)
	e.setString("LOG_LEVEL", &cfg.Log.Level)
	e.setString("LOG_FORMAT", &cfg.Log.Format)

	e.setString("LEO_TLE_FILE", &cfg.Ephemeris.TLEFile)
	e.setString("LEO_TLE_URL", &cfg.Ephemeris.TLEURL)
	e.setInt("LEO_MAX_SATELLITES", &cfg.Ephemeris.MaxSatellites)
	e.setDuration("LEO_CATALOG_TTL", &cfg.Ephemeris.CatalogTTL)
	e.setDuration("LEO_FETCH_TIMEOUT", &cfg.Ephemeris.FetchTimeout)
	e.setDuration("LEO_FETCH_BUDGET", &cfg.Ephemeris.FetchBudget)
	e.setDuration("LEO_CATALOG_RETRY_COOLDOWN", &cfg.Ephemeris.RetryCooldown)
	e.setInt64("LEO_LOAD_SEED", &cfg.Ephemeris.LoadSeed)

	e.setString("LEO_GEOCODE_URL", &cfg.Geocode.URL)
	e.setString("LEO_GEOCODE_USER_AGENT", &cfg.Geocode.UserAgent)
	e.setDuration("LEO_GEOCODE_TIMEOUT", &cfg.Geocode.Timeout)

	e.setString("LEO_CACHE_BACKEND", &cfg.Cache.Backend)
	e.setString("LEO_CACHE_DSN", &cfg.Cache.DSN)
	e.setString("LEO_REDIS_URL", &cfg.Cache.RedisURL)
	e.setDuration("LEO_CACHE_TTL", &cfg.Cache.TTL)

	e.setString("LEO_STATE_BACKEND", &cfg.State.Backend)
	e.setString("LEO_CONSUL_ADDR", &cfg.State.ConsulAddr)
	e.setString("LEO_CONSUL_KEY", &cfg.State.ConsulKey)

	e.setUint64("LEO_FAULT_SEED", &cfg.Simulation.FaultSeed)
	e.setDuration("LEO_PUBLISH_INTERVAL", &cfg.Simulation.PublishInterval)

	e.setBool("LEO_TRACING_ENABLED", &cfg.Tracing.Enabled)
	e.setString("LEO_TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	e.setString("LEO_TRACING_EXPORTER", &cfg.Tracing.Exporter)
	e.setString("LEO_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	e.setFloat("LEO_TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err))
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setUint64(key string, dst *uint64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setFloat(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.HTTP.Addr == "" {
		invalid("http.addr is required")
	}
	if c.Ephemeris.MaxSatellites <= 0 {
		invalid("ephemeris.max_satellites must be positive, got %d", c.Ephemeris.MaxSatellites)
	}
	if c.Ephemeris.TLEFile == "" && c.Ephemeris.TLEURL == "" {
		invalid("one of ephemeris.tle_file or ephemeris.tle_url is required")
	}
	if c.Ephemeris.CatalogTTL <= 0 {
		invalid("ephemeris.catalog_ttl must be positive")
	}
	if c.Ephemeris.FetchBudget <= 0 || c.Ephemeris.RetryCooldown <= 0 {
		invalid("ephemeris.fetch_budget and ephemeris.retry_cooldown must be positive")
	}
	if c.HTTP.WriteTimeout > 0 && c.Ephemeris.FetchBudget >= c.HTTP.WriteTimeout {
		invalid("ephemeris.fetch_budget (%v) must be shorter than http.write_timeout (%v)", c.Ephemeris.FetchBudget, c.HTTP.WriteTimeout)
	}
	if c.Geocode.Timeout <= 0 {
		invalid("geocode.timeout must be positive")
	}
	if c.Simulation.PublishInterval < 0 {
		invalid("simulation.publish_interval must not be negative")
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheSQLite, CachePostgres:
		if c.Cache.DSN == "" {
			invalid("cache.dsn is required for the %s backend", c.Cache.Backend)
		}
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			invalid("cache.redis_url is required for the redis backend")
		}
	default:
		invalid("unknown cache.backend %q", c.Cache.Backend)
	}

	switch c.State.Backend {
	case StateMemory:
	case StateConsul:
		if c.State.ConsulAddr == "" || c.State.ConsulKey == "" {
			invalid("state.consul_addr and state.consul_key are required for the consul backend")
		}
	default:
		invalid("unknown state.backend %q", c.State.Backend)
	}

	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Exporter) {
		case "stdout", "otlp", "otlpgrpc":
		default:
			invalid("unknown tracing.exporter %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			invalid("tracing.sample_ratio must be within [0,1], got %g", c.Tracing.SampleRatio)
		}
	}

	return errors.Join(errs...)
}
