package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"transcript-editor-service/internal/observability/logging"
)

// UnaryServerInterceptor returns a gRPC unary interceptor that logs every call.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	log := logging.WithComponent("grpc")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		logCall(log, info.FullMethod, st.Code(), time.Since(start)).Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor that logs every
// stream once it completes. Health watchers are long-lived streams.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	log := logging.WithComponent("grpc")
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		err := handler(srv, ss)

		st, _ := status.FromError(err)
		logCall(log, info.FullMethod, st.Code(), time.Since(start)).
			Bool("success", err == nil).
			Msg("gRPC stream completed")

		return err
	}
}

func logCall(log zerolog.Logger, method string, code codes.Code, took time.Duration) *zerolog.Event {
	ev := log.Info()
	if code != codes.OK && code != codes.Canceled {
		ev = log.Warn()
	}
	return ev.
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", took)
}
