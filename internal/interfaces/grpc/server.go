package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// Server owns the gRPC server, its health service and its listener.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	cfg        *config.ServerConfig
	log        logger.Logger
}

// NewServer registers svc together with the health service and, when
// enabled, server reflection. The server reports NOT_SERVING until
// SetServing is called.
func NewServer(cfg *config.ServerConfig, svc validationpb.ValidationServer, chain *InterceptorChain, log logger.Logger) *Server {
	grpcServer := grpc.NewServer(chain.ChainUnaryInterceptors())
	validationpb.RegisterValidationServer(grpcServer, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(validationpb.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	if cfg.Reflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		grpcServer: grpcServer,
		health:     hs,
		cfg:        cfg,
		log:        log.WithComponent("GRPCServer"),
	}
}

// SetServing flips the health status of the server and the validation service.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(validationpb.ServiceName, st)
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "gRPC server listening", logger.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Shutdown marks the server NOT_SERVING and drains in-flight calls. When ctx
// expires first, remaining calls are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info(ctx, "gRPC server drained")
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		s.log.Warn(ctx, "gRPC server drain timed out, connections closed")
		return ctx.Err()
	}
}

// GRPCServer exposes the underlying server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}
