package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server は HTTP API と gRPC ヘルスチェックのライフサイクルを管理します。
type Server struct {
	httpAddr        string
	grpcAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	grpcServer      *grpc.Server
	health          *health.Server
	logger          zerolog.Logger
}

// New は API ハンドラを載せたサーバーを構築します。
func New(cfg config.ServerConfig, handler http.Handler, logger zerolog.Logger, opts ...grpc.ServerOption) *Server {
	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		httpAddr:        cfg.HTTPAddr,
		grpcAddr:        cfg.GRPCAddr,
		shutdownTimeout: shutdownTimeout,
		httpServer: &http.Server{
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger,
	}
}

// Run は設定されたアドレスで待ち受け、コンテキストがキャンセルされると両方のサーバーを停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpAddr, err)
	}
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listen on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve は与えられたリスナーでサーバーを起動します。
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", httpLis.Addr().String()).Msg("http server listening")
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info().Str("addr", grpcLis.Addr().String()).Msg("grpc health server listening")
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		s.logger.Info().Msg("servers stopped")
		return nil
	})

	return g.Wait()
}

// SetServing は gRPC ヘルスチェックの状態を切り替えます。
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}
