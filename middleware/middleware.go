// Package middleware provides wrappers for inbound request dispatch. Install them on an
// engine with handler.WithMiddleware(Chain(...)).
package middleware

import "mini-reqres/handler"

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...handler.Middleware) handler.Middleware {
	return func(next handler.DispatchFunc) handler.DispatchFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
