package grpcserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

// ctxLogger returns the request-scoped logger attached by the logging
// interceptor, or the global logger when the call bypassed it.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}

// unaryLoggingInterceptor tags each call with a request id (reusing the
// caller's x-request-id when present), echoes it in the response header,
// attaches a logger carrying it to the context and logs the outcome.
func unaryLoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDHeader); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	l := log.With().Str("request_id", id).Logger()
	ctx = l.WithContext(ctx)
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id))

	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)

	ev := l.Info()
	switch code {
	case codes.OK, codes.Unauthenticated, codes.AlreadyExists, codes.InvalidArgument, codes.PermissionDenied:
	default:
		ev = l.Error().Err(err)
	}
	ev.Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg("grpc call")
	return resp, err
}
