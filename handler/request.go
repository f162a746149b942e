package handler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"mini-reqres/message"
	"mini-reqres/transport"
)

// DispatchFunc handles one inbound request. Returning an *AckError answers the request
// with its code; any other error drops it.
type DispatchFunc func(ctx context.Context, req *Request) error

// Middleware wraps a DispatchFunc.
type Middleware func(next DispatchFunc) DispatchFunc

// Request is one inbound request on its way to a business handler.
type Request struct {
	Type    uint16
	ID      uint32
	Sender  transport.ConnectionID
	Payload []byte

	handler *Handler
	replied atomic.Bool
}

// Handler returns the engine that received the request.
func (r *Request) Handler() *Handler { return r.handler }

// Reply sends the response frame for r. Only the first call sends; it reports whether
// this call was the one.
func (r *Request) Reply(code message.AckCode, payload []byte) bool {
	if !r.replied.CompareAndSwap(false, true) {
		r.handler.logger.Debug("reply already sent, ignoring",
			zap.Uint16("type", r.Type),
			zap.Uint32("id", r.ID),
			zap.Stringer("code", code))
		return false
	}
	r.handler.sendResponse(r.Sender, &message.ResponseFrame{
		RequestID: r.ID,
		AckCode:   code,
		Payload:   payload,
	})
	return true
}

// Replied reports whether a response has been sent.
func (r *Request) Replied() bool { return r.replied.Load() }
