package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mini-reqres/codec"
	"mini-reqres/message"
	"mini-reqres/transport"
)

// ExtraWriter appends untyped bytes after the typed part of a payload.
type ExtraWriter func(w *codec.Writer)

// ResultFunc is the one-shot sink a request handler answers through.
type ResultFunc[Resp any] func(code message.AckCode, response Resp, extra ExtraWriter)

// RequestFunc is a business handler for one request type.
type RequestFunc[Req, Resp any] func(data RequestData, request Req, result ResultFunc[Resp])

// ResponseFunc receives the completion of an outbound request.
type ResponseFunc[Resp any] func(data ResponseData, code message.AckCode, response Resp)

// RequestData describes the inbound request passed to a RequestFunc.
type RequestData struct {
	RequestType uint16
	RequestID   uint32
	Sender      transport.ConnectionID
	Handler     *Handler
	// Extra holds the bytes that followed the typed request.
	Extra *codec.Reader

	ctx context.Context
}

// Context is cancelled when a Timeout middleware gives up on the request.
func (d RequestData) Context() context.Context {
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// ResponseData describes a completed outbound request.
type ResponseData struct {
	RequestID uint32
	// Sender is the responding peer, or ServerClientID for local completions
	// (timeouts, drains, rejections).
	Sender  transport.ConnectionID
	Handler *Handler
	Extra   *codec.Reader
}

// RequestInvoker decodes an inbound request and runs its business handler.
type RequestInvoker interface {
	InvokeRequest(ctx context.Context, req *Request) error
}

// ResponseInvoker validates outbound request values and delivers completions.
type ResponseInvoker interface {
	IsRequestTypeValid(request any) bool
	InvokeResponse(data ResponseData, code message.AckCode, payload []byte, callback ResponseFunc[any])
}

type requestInvoker[Req, Resp any] struct {
	handler *Handler
	fn      RequestFunc[Req, Resp]
}

func (i *requestInvoker[Req, Resp]) InvokeRequest(ctx context.Context, req *Request) error {
	if i.fn == nil {
		return NewAckError(message.AckUnimplemented, nil)
	}
	var request Req
	extra, err := codec.DecodePayload(i.handler.codec, req.Payload, &request)
	if err != nil {
		return fmt.Errorf("%w: type %d: %w", ErrMalformedPayload, req.Type, err)
	}

	data := RequestData{
		RequestType: req.Type,
		RequestID:   req.ID,
		Sender:      req.Sender,
		Handler:     i.handler,
		Extra:       extra,
		ctx:         ctx,
	}
	i.fn(data, request, func(code message.AckCode, response Resp, w ExtraWriter) {
		if req.Replied() {
			req.Reply(code, nil) // logs the duplicate
			return
		}
		payload, err := codec.EncodePayload(i.handler.codec, response, w)
		if err != nil {
			i.handler.logger.Error("encode response",
				zap.Uint16("type", req.Type),
				zap.Uint32("id", req.ID),
				zap.Error(err))
			req.Reply(message.AckError, nil)
			return
		}
		req.Reply(code, payload)
	})
	return nil
}

type responseInvoker[Req, Resp any] struct {
	handler *Handler
	fn      ResponseFunc[Resp]
}

func (i *responseInvoker[Req, Resp]) IsRequestTypeValid(request any) bool {
	_, ok := request.(Req)
	return ok
}

func (i *responseInvoker[Req, Resp]) InvokeResponse(data ResponseData, code message.AckCode, payload []byte, callback ResponseFunc[any]) {
	var response Resp
	var rest []byte
	if len(payload) > 0 {
		extra, err := codec.DecodePayload(i.handler.codec, payload, &response)
		if err != nil {
			i.handler.logger.Warn("decode response",
				zap.Uint32("id", data.RequestID),
				zap.Stringer("code", code),
				zap.Error(err))
			var zero Resp
			response = zero
			code = message.AckBadRequest
		} else {
			rest = extra.Rest()
		}
	}

	// each callback reads the extra bytes from the start
	if i.fn != nil {
		data.Extra = codec.NewReader(rest)
		i.fn(data, code, response)
	}
	if callback != nil {
		data.Extra = codec.NewReader(rest)
		callback(data, code, response)
	}
}

// RegisterRequestHandler registers fn to answer inbound requests of requestType on h.
// A later registration for the same type replaces the earlier one.
func RegisterRequestHandler[Req, Resp any](h *Handler, requestType uint16, fn RequestFunc[Req, Resp]) {
	h.RegisterRequestInvoker(requestType, &requestInvoker[Req, Resp]{handler: h, fn: fn})
}

// RegisterResponseHandler declares Req as the outbound request value for requestType and
// Resp as its response. fn, when non-nil, sees every completion of that type before the
// per-call callback.
func RegisterResponseHandler[Req, Resp any](h *Handler, requestType uint16, fn ResponseFunc[Resp]) {
	h.RegisterResponseInvoker(requestType, &responseInvoker[Req, Resp]{handler: h, fn: fn})
}
