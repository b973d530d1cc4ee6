package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "tradedocs"

// NewGRPCServer returns a gRPC server exposing the standard health service
// and reflection for grpcurl.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return gs
}

// UpdateHealth runs check once and publishes the outcome.
func UpdateHealth(ctx context.Context, hs *health.Server, check HealthChecker, logger *slog.Logger) healthpb.HealthCheckResponse_ServingStatus {
	if logger == nil {
		logger = slog.Default()
	}
	st := healthpb.HealthCheckResponse_SERVING
	if check != nil {
		if err := check(ctx); err != nil {
			logger.Warn("health.not_serving", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
	return st
}

// WatchHealth re-runs check every interval until ctx is done, then marks
// the server as shutting down.
func WatchHealth(ctx context.Context, hs *health.Server, check HealthChecker, every time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if every <= 0 {
		every = 15 * time.Second
	}
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		UpdateHealth(pctx, hs, check, logger)
	}
	probe()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			probe()
		}
	}
}

// ServeGRPC serves gs on addr until ctx is done.
func ServeGRPC(ctx context.Context, addr string, gs *grpc.Server, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("grpc.listening", "addr", addr)
		errCh <- gs.Serve(lis)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("grpc.shutdown")
		gs.GracefulStop()
		return nil
	}
}
