package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalsfoundry/leo-route-optimizer/internal/config"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/observability"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, AddSource: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, tracingConfig(cfg), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		log.Error(ctx, "failed to build router", logging.Err(err))
		return err
	}
	defer a.close()

	if err := a.listen(); err != nil {
		log.Error(ctx, "failed to listen", logging.Err(err))
		return err
	}
	return a.run(ctx)
}

func tracingConfig(cfg config.Config) observability.TracingConfig {
	catalog := "network"
	if cfg.Ephemeris.TLEFile != "" {
		catalog = "file"
	}
	return observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes: map[string]string{
			"catalog":       catalog,
			"cache_backend": cfg.Cache.Backend,
			"state_backend": cfg.State.Backend,
		},
	}
}

// parseConfig loads the config file named by -config (or LEO_CONFIG) and then
// applies any flags given explicitly on the command line.
func parseConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("leo-router", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("LEO_CONFIG"), "path to a YAML config file")
	envFile := fs.String("env-file", ".env", "path to a .env file; missing files are ignored")
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	grpcAddr := fs.String("grpc-addr", "", "gRPC listen address")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus /metrics listen address")
	tleFile := fs.String("tle-file", "", "read the TLE catalog from a file instead of the network")
	faultSeed := fs.Uint64("fault-seed", 0, "seed for the solar storm fault selection")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return config.Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTP.Addr = *httpAddr
		case "grpc-addr":
			cfg.GRPC.Addr = *grpcAddr
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "tle-file":
			cfg.Ephemeris.TLEFile = *tleFile
		case "fault-seed":
			cfg.Simulation.FaultSeed = *faultSeed
		}
	})
	return cfg, cfg.Validate()
}
