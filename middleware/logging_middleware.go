package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-reqres/handler"
)

// LoggingMiddleware logs every inbound request with the time spent in dispatch.
// Handlers that answer asynchronously are only timed up to their return.
func LoggingMiddleware(logger *zap.Logger) handler.Middleware {
	return func(next handler.DispatchFunc) handler.DispatchFunc {
		return func(ctx context.Context, req *handler.Request) error {
			start := time.Now()
			err := next(ctx, req)
			fields := []zap.Field{
				zap.Uint16("type", req.Type),
				zap.Uint32("id", req.ID),
				zap.Uint64("sender", uint64(req.Sender)),
				zap.Duration("duration", time.Since(start)),
				zap.Bool("replied", req.Replied()),
			}
			if err != nil {
				logger.Warn("request failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Info("request handled", fields...)
			return nil
		}
	}
}
