package middleware

import (
	"context"
	"errors"
	"time"

	"mini-reqres/handler"
	"mini-reqres/message"
)

// TimeoutMiddleware answers AckTimeout when the business handler has not replied within
// timeout. The handler's late reply is dropped. The request context is cancelled at the
// deadline so the handler can stop early.
func TimeoutMiddleware(timeout time.Duration) handler.Middleware {
	return func(next handler.DispatchFunc) handler.DispatchFunc {
		return func(ctx context.Context, req *handler.Request) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			stop := context.AfterFunc(ctx, func() {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					req.Reply(message.AckTimeout, nil)
				}
				cancel()
			})

			err := next(ctx, req)
			if err != nil || req.Replied() {
				stop()
				cancel()
			}
			return err
		}
	}
}
