package handler

import (
	"go.uber.org/zap"

	"mini-reqres/codec"
)

const (
	DefaultRequestChannel  = "REQ"
	DefaultResponseChannel = "RES"
)

// Option configures a Handler.
type Option func(*Handler)

// WithName labels the engine in logs ("server", "client").
func WithName(name string) Option {
	return func(h *Handler) { h.name = name }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCodec sets the serializer for the typed part of payloads. Both peers must agree.
func WithCodec(c codec.Codec) Option {
	return func(h *Handler) {
		if c != nil {
			h.codec = c
		}
	}
}

// WithChannels overrides the request and response channel names.
func WithChannels(request, response string) Option {
	return func(h *Handler) {
		h.requestChannel = request
		h.responseChannel = response
	}
}

// WithMaxPending caps the number of requests awaiting a response (0 = unlimited).
func WithMaxPending(n int) Option {
	return func(h *Handler) { h.maxPending = n }
}

// WithMiddleware wraps inbound request dispatch. Combine several with middleware.Chain.
func WithMiddleware(mw Middleware) Option {
	return func(h *Handler) { h.middleware = mw }
}
