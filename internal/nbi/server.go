package nbi

import (
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// NewServer builds a grpc.Server with the route service registered. Calls pass
// through request id, tracing, metrics (when collector is non-nil) and panic
// recovery, outermost first.
func NewServer(router Router, log logging.Logger, collector *observability.RouterCollector, extra ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = logging.Noop()
	}
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, RecoveryUnaryServerInterceptor(log))

	opts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}, extra...)

	srv := grpc.NewServer(opts...)
	RegisterRouteServiceServer(srv, NewRouteService(router, log))
	return srv
}
