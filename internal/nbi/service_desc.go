package nbi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RouteServiceName is the fully-qualified gRPC service name.
const RouteServiceName = "leo.routing.v1.RouteService"

const (
	RouteServiceTopologyMethod           = "/" + RouteServiceName + "/Topology"
	RouteServiceRouteMethod              = "/" + RouteServiceName + "/Route"
	RouteServiceToggleWeatherMethod      = "/" + RouteServiceName + "/ToggleWeather"
	RouteServiceToggleSolarStormMethod   = "/" + RouteServiceName + "/ToggleSolarStorm"
	RouteServiceGetSimulationStateMethod = "/" + RouteServiceName + "/GetSimulationState"
)

// RouteServiceServer is the server API for the route service. Payloads use
// well-known protobuf types; Struct bodies share their JSON shape with the
// HTTP API.
type RouteServiceServer interface {
	Topology(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Route(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleWeather(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	ToggleSolarStorm(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	GetSimulationState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RouteServiceDesc describes the service for grpc.Server.RegisterService.
var RouteServiceDesc = grpc.ServiceDesc{
	ServiceName: RouteServiceName,
	HandlerType: (*RouteServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Topology",
			Handler: unaryHandler(RouteServiceTopologyMethod, func(s RouteServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.Topology(ctx, in)
			}),
		},
		{
			MethodName: "Route",
			Handler: unaryHandler(RouteServiceRouteMethod, func(s RouteServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Route(ctx, in)
			}),
		},
		{
			MethodName: "ToggleWeather",
			Handler: unaryHandler(RouteServiceToggleWeatherMethod, func(s RouteServiceServer, ctx context.Context, in *emptypb.Empty) (*wrapperspb.BoolValue, error) {
				return s.ToggleWeather(ctx, in)
			}),
		},
		{
			MethodName: "ToggleSolarStorm",
			Handler: unaryHandler(RouteServiceToggleSolarStormMethod, func(s RouteServiceServer, ctx context.Context, in *emptypb.Empty) (*wrapperspb.BoolValue, error) {
				return s.ToggleSolarStorm(ctx, in)
			}),
		},
		{
			MethodName: "GetSimulationState",
			Handler: unaryHandler(RouteServiceGetSimulationStateMethod, func(s RouteServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.GetSimulationState(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "leo/routing/v1/route_service.proto",
}

// RegisterRouteServiceServer registers srv on s.
func RegisterRouteServiceServer(s grpc.ServiceRegistrar, srv RouteServiceServer) {
	s.RegisterService(&RouteServiceDesc, srv)
}

// unaryHandler adapts a typed method into a grpc.MethodHandler, decoding the
// request and running the interceptor chain the same way generated code does.
func unaryHandler[Req any, Resp any](fullMethod string, call func(RouteServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RouteServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RouteServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
