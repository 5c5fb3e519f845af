package grpcserver

import (
	"context"
	"net"

	"labInventoryManager/internal/auth"
	"labInventoryManager/internal/config"

	"google.golang.org/grpc"
)

// NewGRPCServer builds a grpc.Server with LabService registered behind the
// logging and authentication interceptors. Login and CreateLab are reachable
// without a token; they are the login screen.
func NewGRPCServer(cfg *config.Config, s *Server) *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		unaryLoggingInterceptor,
		auth.NewUnaryAuthInterceptor(cfg.Auth.JWTSecret, MethodLogin, MethodCreateLab),
	))
	RegisterLabServiceServer(srv, s)
	return srv
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, s *Server) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := NewGRPCServer(cfg, s)

	// Plaintext; put TLS in front of it when exposed beyond localhost.
	go func() { _ = srv.Serve(lis) }()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
