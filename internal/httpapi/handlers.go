package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
)

// Service is the slice of sim.Service the HTTP handlers depend on.
type Service interface {
	Topology(ctx context.Context) (sim.TopologyView, error)
	Route(ctx context.Context, req sim.RouteRequest) (sim.RouteResponse, error)
	ToggleWeather(ctx context.Context) (core.SimulationConfig, error)
	ToggleSolarStorm(ctx context.Context) (core.SimulationConfig, error)
	State(ctx context.Context) (core.SimulationConfig, error)
}

var _ Service = (*sim.Service)(nil)

type handlers struct {
	svc Service
	log logging.Logger
}

func (h *handlers) satellites(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Topology(r.Context())
	if err != nil {
		h.fail(w, r, "topology failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewSatellitesResponse(view.Topology))
}

// route answers 200 for every well-formed request; "error" and "no_path"
// outcomes are reported in the body's status field.
func (h *handlers) route(w http.ResponseWriter, r *http.Request) {
	var req dto.RouteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	simReq, err := req.ToSim()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.svc.Route(r.Context(), simReq)
	if err != nil {
		if errors.Is(err, sim.ErrInvalidRequest) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, r, "route failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewRouteResponse(resp))
}

func (h *handlers) toggleWeather(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.ToggleWeather(r.Context())
	if err != nil {
		h.fail(w, r, "toggle weather failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewWeatherToggleResponse(cfg))
}

func (h *handlers) toggleStorm(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.ToggleSolarStorm(r.Context())
	if err != nil {
		h.fail(w, r, "toggle storm failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.StormToggleResponse{StormActive: cfg.SolarStorm})
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.State(r.Context())
	if err != nil {
		h.fail(w, r, "load state failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewStateResponse(cfg))
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logging.FromContextOr(r.Context(), h.log).Error(r.Context(), msg, logging.Err(err))
	writeError(w, r, http.StatusInternalServerError, msg)
}
