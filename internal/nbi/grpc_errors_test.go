package nbi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/signalsfoundry/leo-route-optimizer/core"
	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/ephemeris"
	"github.com/signalsfoundry/leo-route-optimizer/internal/geocode"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim"
	"github.com/signalsfoundry/leo-route-optimizer/internal/sim/state"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid payload", err: fmt.Errorf("%w: not json", ErrInvalidPayload), code: codes.InvalidArgument},
		{name: "invalid location", err: fmt.Errorf("%w: source.lat is required", dto.ErrInvalidLocation), code: codes.InvalidArgument},
		{name: "invalid request", err: fmt.Errorf("%w: %v", sim.ErrInvalidRequest, geocode.ErrInvalidQuery), code: codes.InvalidArgument},
		{name: "no coverage", err: fmt.Errorf("%w: empty snapshot", core.ErrNoCoverage), code: codes.FailedPrecondition},
		{name: "no path", err: core.ErrNoPath, code: codes.NotFound},
		{name: "upstream", err: ephemeris.ErrUpstreamUnavailable, code: codes.Unavailable},
		{name: "cas conflict", err: state.ErrConflict, code: codes.Aborted},
		{name: "deadline", err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ToStatusError(%v) = nil, want error", tc.err)
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
