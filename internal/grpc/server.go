package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
)

// ServiceName is the health service name reporting prediction backend liveness
const ServiceName = "predictor"

// HealthChecker probes the prediction backend
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// Server exposes grpc.health.v1 with the backend's liveness under ServiceName
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	checker    HealthChecker
	onProbe    func(up bool)
}

// NewServer creates a gRPC server with the health and reflection services.
// onProbe, if set, is called with the result of every probe.
func NewServer(checker HealthChecker, onProbe func(up bool)) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()

	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	// Unknown until the first probe
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_UNKNOWN)

	return &Server{
		grpcServer: gs,
		health:     hs,
		checker:    checker,
		onProbe:    onProbe,
	}
}

// Health returns the underlying health server
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

// Probe checks the backend once and publishes the result
func (s *Server) Probe(ctx context.Context) bool {
	up := s.checker.CheckHealth(ctx)

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)

	if s.onProbe != nil {
		s.onProbe(up)
	}
	logger.Debug("gRPC: Backend probe", "service", ServiceName, "up", up)
	return up
}

// RunProbe probes immediately and then every interval until ctx is done
func (s *Server) RunProbe(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %v", interval)
	}
	s.Probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			s.Probe(probeCtx)
			cancel()
		}
	}
}

// Serve accepts connections on lis until Stop is called
func (s *Server) Serve(lis net.Listener) error {
	logger.Info("gRPC server starting", "address", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// Stop marks every service as not serving and drains connections
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
