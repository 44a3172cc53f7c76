package interceptor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryLogger は unary 呼び出しの結果をログに出力します。パニックは codes.Internal に変換します。
func UnaryLogger(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("grpc handler panicked")
				err = status.Error(codes.Internal, "internal error")
			}
			logCall(logger, info.FullMethod, err, time.Since(start))
		}()
		return handler(ctx, req)
	}
}

// StreamLogger はストリーム呼び出しの終了をログに出力します。
func StreamLogger(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Str("method", info.FullMethod).Msg("grpc handler panicked")
				err = status.Error(codes.Internal, "internal error")
			}
			logCall(logger, info.FullMethod, err, time.Since(start))
		}()
		return handler(srv, ss)
	}
}

func logCall(logger zerolog.Logger, method string, err error, elapsed time.Duration) {
	code := status.Code(err)
	event := logger.Debug()
	switch code {
	case codes.OK, codes.Canceled:
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		event = logger.Error().Err(err)
	default:
		event = logger.Warn().Err(err)
	}
	event.
		Str("method", method).
		Str("code", code.String()).
		Dur("elapsed", elapsed).
		Msg("grpc call completed")
}
