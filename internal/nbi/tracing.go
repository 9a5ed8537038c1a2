package nbi

import (
	"context"
	"strings"

	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"github.com/signalsfoundry/leo-route-optimizer/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// TracingUnaryServerInterceptor names the RPC span RouteAPI/<method> and tags
// it with rpc.* attributes, the request id, the gRPC code and, for Route, the
// routing outcome. A span is started when the otelgrpc stats handler has not
// already opened one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(observability.TracerName + "/nbi")

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "RouteAPI/" + method

		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			span.SetName(name)
		} else {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		}
		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		)
		if id := logging.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		resp, err := handler(ctx, req)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))
		if err != nil {
			observability.FailSpan(span, err)
			return resp, err
		}
		if info.FullMethod != RouteServiceRouteMethod {
			return resp, nil
		}
		if outcome := routeStatus(resp); outcome != "" {
			span.SetAttributes(attribute.String("route.status", outcome))
		}
		return resp, nil
	}
}

// routeStatus reads the status field of a route payload.
func routeStatus(resp any) string {
	s, ok := resp.(*structpb.Struct)
	if !ok || s == nil {
		return ""
	}
	return s.GetFields()["status"].GetStringValue()
}
