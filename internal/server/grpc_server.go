package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/oggyb/pulse/internal/config"
)

// GRPCServer serves the internal API plus health and reflection.
type GRPCServer struct {
	addr   string
	server *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewGRPCServer builds the server and registers all provided services.
func NewGRPCServer(cfg *config.Config, log *slog.Logger, registrars ...Registrar) *GRPCServer {
	log = log.With("component", "grpc")
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log)))

	for _, r := range registrars {
		r.Register(s)
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(s)

	return &GRPCServer{
		addr:   fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port),
		server: s,
		health: hs,
		log:    log,
	}
}

// Server exposes the underlying grpc.Server, e.g. for bufconn tests.
func (g *GRPCServer) Server() *grpc.Server { return g.server }

// Start listens and blocks until Stop.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.addr, err)
	}
	return g.Serve(lis)
}

func (g *GRPCServer) Serve(lis net.Listener) error {
	g.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	g.log.Info("grpc server listening", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop drains in-flight calls, forcing a stop when ctx expires first.
func (g *GRPCServer) Stop(ctx context.Context) {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.server.Stop()
	}
	g.log.Info("grpc server stopped")
}

func unaryLogger(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency", time.Since(start),
		)
		return resp, err
	}
}
