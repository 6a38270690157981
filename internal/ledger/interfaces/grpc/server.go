// Package grpc 账本服务的 gRPC 入口，只承载健康检查与反射
package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName 健康检查中登记的服务名
const ServiceName = "investledger.Ledger"

// Server gRPC 服务
type Server struct {
	server *grpc.Server
	health *health.Server
}

// NewServer 创建 gRPC 服务并注册健康检查
func NewServer() *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
	))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{server: srv, health: hs}
}

// Serve 在 lis 上阻塞服务
func (s *Server) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// ListenAndServe 监听端口，ctx 取消后先摘流量再优雅停止
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logger.Info(ctx, "gRPC server starting", "addr", addr)
	return s.Serve(lis)
}

// Stop 标记 NOT_SERVING 后优雅停止
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
