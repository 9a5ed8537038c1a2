package httpapi

import (
	"net/http"

	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
)

// Options carries the optional collaborators of the HTTP API.
type Options struct {
	Metrics HTTPMetrics
	// Hub serves GET /ws/topology when set.
	Hub http.Handler
}

// NewRouter wires the HTTP handlers with their dependencies and returns the
// fully wrapped http.Handler.
func NewRouter(svc Service, log logging.Logger, opts Options) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	h := &handlers{svc: svc, log: log}
	mux := http.NewServeMux()

	mux.Handle("GET /satellites", instrument("satellites", opts.Metrics, h.satellites))
	mux.Handle("POST /route", instrument("route", opts.Metrics, h.route))
	mux.Handle("POST /toggle-weather", instrument("toggle_weather", opts.Metrics, h.toggleWeather))
	mux.Handle("POST /toggle-storm", instrument("toggle_storm", opts.Metrics, h.toggleStorm))
	mux.Handle("GET /state", instrument("state", opts.Metrics, h.state))
	mux.HandleFunc("GET /health", health)
	if opts.Hub != nil {
		mux.Handle("GET /ws/topology", opts.Hub)
	}

	return requestMiddleware(log, corsMiddleware(mux))
}
