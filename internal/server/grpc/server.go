// Package grpc is the gRPC adapter of the blog core. It translates
// blog.v1.BlogService calls into services.Blog operations and core error
// kinds into gRPC status codes; it holds no state of its own.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophblog/internal/logging"
	pb "github.com/dmitrijs2005/gophblog/internal/proto"
	"github.com/dmitrijs2005/gophblog/internal/server/metrics"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	pb.UnimplementedBlogServiceServer
	address string
	blog    services.Blog
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, blog services.Blog, m *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		blog:    blog,
		metrics: m,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestInterceptor, s.accessTokenInterceptor))

	// registers service
	pb.RegisterBlogServiceServer(srv, s)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	<-stopped
	return nil
}
