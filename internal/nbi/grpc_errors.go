package nbi

import (
	"context"
	"errors"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/ephemeris"
	"github.com/signalsfoundry/leo-route-optimizer/internal/geocode"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidPayload is used when a Struct payload cannot be decoded.
var ErrInvalidPayload = errors.New("invalid payload")

// ToStatusError maps router errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, dto.ErrInvalidLocation),
		errors.Is(err, sim.ErrInvalidRequest),
		errors.Is(err, geocode.ErrInvalidQuery):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrNoCoverage):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, core.ErrNoPath):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ephemeris.ErrUpstreamUnavailable):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, state.ErrConflict):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
