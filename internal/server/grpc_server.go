package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/oggyb/kinnect/internal/app"
	svcErr "github.com/oggyb/kinnect/internal/errors"
	"github.com/oggyb/kinnect/internal/logger"
)

// NewGRPCServer builds a gRPC server with error mapping, the given registrars and reflection.
func NewGRPCServer(appCtx *app.AppContext, registrars ...GRPCRegistrar) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryErrors(appCtx)))

	// register all services
	for _, r := range registrars {
		r.Register(s)
	}

	// enable reflection for easier debugging with grpcurl
	reflection.Register(s)
	return s
}

// StartGRPCServer serves s until ctx is cancelled.
func StartGRPCServer(ctx context.Context, appCtx *app.AppContext, s *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", appCtx.Config.GRPC.Host, appCtx.Config.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	appCtx.Logger.Info("starting gRPC server", "addr", addr)
	return s.Serve(lis)
}

// unaryErrors converts domain errors to gRPC status codes and logs internal failures.
// Errors that already carry a gRPC code pass through unchanged.
func unaryErrors(appCtx *app.AppContext) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		var de *svcErr.Error
		if !errors.As(err, &de) {
			if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
				return resp, err
			}
		}
		if mapped := svcErr.As(err); mapped != nil && mapped.Kind == svcErr.KindInternal {
			logger.FromContext(ctx, appCtx.Logger).Error("grpc call failed", "method", info.FullMethod, "err", err)
		}
		return resp, svcErr.GRPCStatus(err)
	}
}

// HealthRegistrar serves grpc.health.v1. The status follows Ready.
type HealthRegistrar struct {
	appCtx   *app.AppContext
	server   *health.Server
	interval time.Duration
}

func NewHealthRegistrar(appCtx *app.AppContext) *HealthRegistrar {
	return &HealthRegistrar{appCtx: appCtx, server: health.NewServer(), interval: 15 * time.Second}
}

func (h *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Check updates the overall serving status once.
func (h *HealthRegistrar) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := Ready(ctx, h.appCtx); err != nil {
		h.appCtx.Logger.Warn("readiness check failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	return status
}

// Watch re-checks readiness on an interval until ctx ends, then reports NOT_SERVING for good.
func (h *HealthRegistrar) Watch(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}
