package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const accessTokenKey ctxKey = "accessToken"

const requestIDHeader = "x-request-id"

// accessTokenInterceptor copies the session token from the authorization
// metadata into the context. Whether a method needs it is the core's call.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AuthorizationHeaderName)
		if len(values) > 0 {
			accessToken = common.BearerToken(values[0])
		}
	}

	ctx = context.WithValue(ctx, accessTokenKey, accessToken)
	return handler(ctx, req)
}

func accessToken(ctx context.Context) string {
	t, _ := ctx.Value(accessTokenKey).(string)
	return t
}

// requestInterceptor tags the call with a request id, recovers panics and
// records the outcome in the log and metrics.
func (s *GRPCServer) requestInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	start := time.Now()

	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(requestIDHeader); len(values) > 0 {
			requestID = values[0]
		}
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, requestID)
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "panic in grpc handler", "method", info.FullMethod, "panic", p)
			resp, err = nil, toStatus(common.ErrInternal)
		}

		code := status.Code(err)
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.Observe("grpc", info.FullMethod, code.String(), elapsed)
		}
		if code == codes.Internal {
			s.logger.Error(ctx, "grpc request", "method", info.FullMethod, "code", code.String(), "duration", elapsed.String())
			return
		}
		s.logger.Info(ctx, "grpc request", "method", info.FullMethod, "code", code.String(), "duration", elapsed.String())
	}()

	return handler(ctx, req)
}
