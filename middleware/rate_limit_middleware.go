package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"mini-reqres/handler"
	"mini-reqres/message"
)

var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware is a token bucket shared by every sender. Rejected requests are
// answered with AckRateLimited.
func RateLimitMiddleware(r float64, burst int) handler.Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next handler.DispatchFunc) handler.DispatchFunc {
		return func(ctx context.Context, req *handler.Request) error {
			if !limiter.Allow() {
				return handler.NewAckError(message.AckRateLimited, ErrRateLimited)
			}
			return next(ctx, req)
		}
	}
}
