package nbi

import (
	"context"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Router is the slice of sim.Service the RPC surface depends on.
type Router interface {
	Topology(ctx context.Context) (sim.TopologyView, error)
	Route(ctx context.Context, req sim.RouteRequest) (sim.RouteResponse, error)
	ToggleWeather(ctx context.Context) (core.SimulationConfig, error)
	ToggleSolarStorm(ctx context.Context) (core.SimulationConfig, error)
	State(ctx context.Context) (core.SimulationConfig, error)
}

var _ Router = (*sim.Service)(nil)

// RouteService implements RouteServiceServer on top of a Router.
type RouteService struct {
	router Router
	log    logging.Logger
}

var _ RouteServiceServer = (*RouteService)(nil)

func NewRouteService(router Router, log logging.Logger) *RouteService {
	if log == nil {
		log = logging.Noop()
	}
	return &RouteService{router: router, log: log}
}

func (s *RouteService) Topology(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	view, err := s.router.Topology(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := ToStruct(dto.NewSatellitesResponse(view.Topology))
	return out, ToStatusError(err)
}

// Route mirrors POST /route: routing failures ("error", "no_path") come back
// as a normal response carrying the status field. Only malformed requests
// and infrastructure faults are RPC errors.
func (s *RouteService) Route(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.RouteRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	simReq, err := req.ToSim()
	if err != nil {
		return nil, ToStatusError(err)
	}

	resp, err := s.router.Route(ctx, simReq)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if resp.Err != nil {
		logging.FromContextOr(ctx, s.log).Debug(ctx, "route not found",
			logging.String("status", resp.Status),
			logging.Err(resp.Err),
		)
	}
	out, err := ToStruct(dto.NewRouteResponse(resp))
	return out, ToStatusError(err)
}

// ToggleWeather returns true when the demo storm zone is now installed.
func (s *RouteService) ToggleWeather(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	cfg, err := s.router.ToggleWeather(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return wrapperspb.Bool(cfg.WeatherActive()), nil
}

// ToggleSolarStorm returns the new solar storm flag.
func (s *RouteService) ToggleSolarStorm(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	cfg, err := s.router.ToggleSolarStorm(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return wrapperspb.Bool(cfg.SolarStorm), nil
}

func (s *RouteService) GetSimulationState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cfg, err := s.router.State(ctx)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := ToStruct(dto.NewStateResponse(cfg))
	return out, ToStatusError(err)
}
