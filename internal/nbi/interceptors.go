package nbi

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDMetadataKey = "x-request-id"

// RequestIDUnaryServerInterceptor adopts the caller's x-request-id (or mints
// one), stores a request logger on the context and echoes the id back as a
// response header. Each call is logged once on completion.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if id := firstHeader(md, requestIDMetadataKey); id != "" {
				ctx = logging.ContextWithRequestID(ctx, id)
			}
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(logging.String("rpc", info.FullMethod)))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, logging.RequestIDFromContext(ctx)))

		start := time.Now()
		resp, err := handler(ctx, req)
		logCompletion(ctx, reqLog, err, time.Since(start))
		return resp, err
	}
}

// logCompletion logs caller mistakes at info and server faults at error.
func logCompletion(ctx context.Context, log logging.Logger, err error, elapsed time.Duration) {
	code := status.Code(err)
	fields := []logging.Field{
		logging.String("code", code.String()),
		logging.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
	}
	switch code {
	case codes.OK:
		log.Debug(ctx, "rpc completed", fields...)
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition,
		codes.Aborted, codes.Canceled, codes.DeadlineExceeded:
		log.Info(ctx, "rpc rejected", append(fields, logging.Err(err))...)
	default:
		log.Error(ctx, "rpc failed", append(fields, logging.Err(err))...)
	}
}

// RecoveryUnaryServerInterceptor turns a handler panic into codes.Internal.
func RecoveryUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logging.FromContextOr(ctx, base).Error(ctx, "rpc panicked",
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func firstHeader(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
