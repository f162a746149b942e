// Package handler correlates requests and responses over a bare named-message transport.
//
// A Handler is one engine: it assigns request ids, keeps the pending table, arms
// timeouts, and dispatches inbound requests to registered invokers. Every outbound
// request completes exactly once, with a response, a timeout, a drain, or a local
// rejection.
//
// Completions run on the goroutine that delivered the response, on the timer goroutine
// for timeouts, and on the caller's goroutine for rejections and Drain.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-reqres/codec"
	"mini-reqres/message"
	"mini-reqres/protocol"
	"mini-reqres/transport"
)

type Handler struct {
	name            string
	transport       transport.Transport
	codec           codec.Codec
	logger          *zap.Logger
	requestChannel  string
	responseChannel string
	maxPending      int
	middleware      Middleware
	dispatch        DispatchFunc

	mu               sync.RWMutex
	requestInvokers  map[uint16]RequestInvoker
	responseInvokers map[uint16]ResponseInvoker

	pending      sync.Map // uint32 → *pendingRequest
	pendingCount atomic.Int64
	nextID       atomic.Uint32
	closed       atomic.Bool
}

// pendingRequest is one outbound request awaiting completion. Whoever removes it from
// the pending table owns its completion.
type pendingRequest struct {
	id       uint32
	invoker  ResponseInvoker
	callback ResponseFunc[any]
	timer    atomic.Pointer[time.Timer]
}

func New(tr transport.Transport, opts ...Option) *Handler {
	h := &Handler{
		name:             "handler",
		transport:        tr,
		codec:            codec.GetCodec(codec.CodecTypeJSON),
		logger:           zap.NewNop(),
		requestChannel:   DefaultRequestChannel,
		responseChannel:  DefaultResponseChannel,
		requestInvokers:  make(map[uint16]RequestInvoker),
		responseInvokers: make(map[uint16]ResponseInvoker),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named(h.name)

	h.dispatch = h.invoke
	if h.middleware != nil {
		h.dispatch = h.middleware(h.dispatch)
	}
	return h
}

func (h *Handler) Name() string            { return h.name }
func (h *Handler) Codec() codec.Codec      { return h.codec }
func (h *Handler) RequestChannel() string  { return h.requestChannel }
func (h *Handler) ResponseChannel() string { return h.responseChannel }

// CreateAndSendRequest sends request to peer and arranges for onResponse to be called
// exactly once. timeout <= 0 waits forever.
//
// A non-nil error means nothing was sent; onResponse has already been called with
// AckUnimplemented.
func (h *Handler) CreateAndSendRequest(
	peer transport.ConnectionID,
	requestType uint16,
	request any,
	extra ExtraWriter,
	onResponse ResponseFunc[any],
	timeout time.Duration,
) error {
	if h.closed.Load() {
		return h.reject(onResponse, ErrClosed)
	}

	invoker, ok := h.responseInvoker(requestType)
	if !ok {
		return h.reject(onResponse, fmt.Errorf("%w: %d", ErrUnimplemented, requestType))
	}
	if !invoker.IsRequestTypeValid(request) {
		return h.reject(onResponse, fmt.Errorf("%w: %T for type %d", ErrInvalidRequestType, request, requestType))
	}

	payload, err := codec.EncodePayload(h.codec, request, extra)
	if err != nil {
		return h.reject(onResponse, err)
	}
	if len(payload) > protocol.MaxPayloadSize {
		return h.reject(onResponse, fmt.Errorf("handler: payload of %d bytes exceeds %d", len(payload), protocol.MaxPayloadSize))
	}
	if h.maxPending > 0 && h.pendingCount.Load() >= int64(h.maxPending) {
		return h.reject(onResponse, fmt.Errorf("%w: %d", ErrTooManyPending, h.maxPending))
	}

	entry := &pendingRequest{invoker: invoker, callback: onResponse}
	id := h.insert(entry)
	if timeout > 0 {
		entry.timer.Store(time.AfterFunc(timeout, func() { h.expire(entry) }))
	}

	data, err := protocol.EncodeRequest(&message.RequestFrame{
		RequestType: requestType,
		RequestID:   id,
		Payload:     payload,
	})
	if err != nil {
		// unreachable after the size check, but the entry must not leak
		if h.pending.CompareAndDelete(id, entry) {
			h.pendingCount.Add(-1)
			entry.stopTimer()
		}
		return h.reject(onResponse, err)
	}

	if err := h.transport.Send(peer, h.requestChannel, data); err != nil {
		// the entry stays pending and resolves by response or timeout
		h.logger.Warn("send request",
			zap.Uint64("peer", uint64(peer)),
			zap.Uint16("type", requestType),
			zap.Uint32("id", id),
			zap.Error(err))
	}
	return nil
}

// reject completes a request that never got an id.
func (h *Handler) reject(onResponse ResponseFunc[any], err error) error {
	h.logger.Error("cannot send request", zap.Error(err))
	if onResponse != nil {
		onResponse(ResponseData{
			Sender:  transport.ServerClientID,
			Handler: h,
			Extra:   codec.NewReader(nil),
		}, message.AckUnimplemented, nil)
	}
	return err
}

// insert stores entry under the next free id. Ids wrap at 2^32 and skip any id that is
// still pending.
func (h *Handler) insert(entry *pendingRequest) uint32 {
	for {
		id := h.nextID.Add(1) - 1
		entry.id = id
		if _, loaded := h.pending.LoadOrStore(id, entry); !loaded {
			h.pendingCount.Add(1)
			return id
		}
	}
}

// take removes the entry for id if present and stops its timer.
func (h *Handler) take(id uint32) (*pendingRequest, bool) {
	v, ok := h.pending.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	h.pendingCount.Add(-1)
	entry := v.(*pendingRequest)
	entry.stopTimer()
	return entry, true
}

// expire runs on the timer goroutine. A timer that lost the race to a response, or whose
// id now belongs to a newer entry, does nothing.
func (h *Handler) expire(entry *pendingRequest) {
	if !h.pending.CompareAndDelete(entry.id, entry) {
		return
	}
	h.pendingCount.Add(-1)
	h.logger.Debug("request timed out", zap.Uint32("id", entry.id))
	h.completeLocally(entry, message.AckTimeout)
}

func (h *Handler) completeLocally(entry *pendingRequest, code message.AckCode) {
	entry.invoker.InvokeResponse(ResponseData{
		RequestID: entry.id,
		Sender:    transport.ServerClientID,
		Handler:   h,
	}, code, nil, entry.callback)
}

func (p *pendingRequest) stopTimer() {
	if t := p.timer.Load(); t != nil {
		t.Stop()
	}
}

// HandleRequest dispatches an inbound request through the middleware chain.
func (h *Handler) HandleRequest(sender transport.ConnectionID, frame *message.RequestFrame) {
	req := &Request{
		Type:    frame.RequestType,
		ID:      frame.RequestID,
		Sender:  sender,
		Payload: frame.Payload,
		handler: h,
	}

	err := h.dispatch(context.Background(), req)
	if err == nil {
		return
	}
	var ackErr *AckError
	if errors.As(err, &ackErr) {
		req.Reply(ackErr.Code, nil)
		return
	}
	h.logger.Warn("request dropped",
		zap.Uint64("sender", uint64(sender)),
		zap.Uint16("type", req.Type),
		zap.Uint32("id", req.ID),
		zap.Error(err))
}

// invoke is the innermost DispatchFunc.
func (h *Handler) invoke(ctx context.Context, req *Request) error {
	invoker, ok := h.requestInvoker(req.Type)
	if !ok {
		h.logger.Error("no request handler registered",
			zap.Uint16("type", req.Type),
			zap.Uint64("sender", uint64(req.Sender)))
		return NewAckError(message.AckUnimplemented, fmt.Errorf("%w: %d", ErrUnimplemented, req.Type))
	}
	return invoker.InvokeRequest(ctx, req)
}

// HandleResponse completes the pending request frame answers. Responses for unknown or
// already completed ids are discarded.
func (h *Handler) HandleResponse(sender transport.ConnectionID, frame *message.ResponseFrame) {
	entry, ok := h.take(frame.RequestID)
	if !ok {
		h.logger.Debug("discarding response for unknown request",
			zap.Uint32("id", frame.RequestID),
			zap.Uint64("sender", uint64(sender)))
		return
	}
	entry.invoker.InvokeResponse(ResponseData{
		RequestID: frame.RequestID,
		Sender:    sender,
		Handler:   h,
	}, frame.AckCode, frame.Payload, entry.callback)
}

func (h *Handler) sendResponse(peer transport.ConnectionID, frame *message.ResponseFrame) {
	data, err := protocol.EncodeResponse(frame)
	if err != nil {
		h.logger.Error("encode response frame", zap.Uint32("id", frame.RequestID), zap.Error(err))
		return
	}
	if err := h.transport.Send(peer, h.responseChannel, data); err != nil {
		h.logger.Warn("send response",
			zap.Uint64("peer", uint64(peer)),
			zap.Uint32("id", frame.RequestID),
			zap.Error(err))
	}
}

func (h *Handler) RegisterRequestInvoker(requestType uint16, invoker RequestInvoker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requestInvokers[requestType] = invoker
}

func (h *Handler) UnregisterRequestHandler(requestType uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.requestInvokers, requestType)
}

func (h *Handler) RegisterResponseInvoker(requestType uint16, invoker ResponseInvoker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responseInvokers[requestType] = invoker
}

func (h *Handler) UnregisterResponseHandler(requestType uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.responseInvokers, requestType)
}

func (h *Handler) requestInvoker(requestType uint16) (RequestInvoker, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inv, ok := h.requestInvokers[requestType]
	return inv, ok
}

func (h *Handler) responseInvoker(requestType uint16) (ResponseInvoker, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inv, ok := h.responseInvokers[requestType]
	return inv, ok
}

// Contains reports whether id is pending.
func (h *Handler) Contains(id uint32) bool {
	_, ok := h.pending.Load(id)
	return ok
}

func (h *Handler) PendingCount() int { return int(h.pendingCount.Load()) }

// Drain completes every pending request with AckTimeout and returns how many it
// completed. Requests sent afterwards are tracked normally.
func (h *Handler) Drain() int {
	n := 0
	h.pending.Range(func(key, value any) bool {
		entry := value.(*pendingRequest)
		if h.pending.CompareAndDelete(key, entry) {
			h.pendingCount.Add(-1)
			entry.stopTimer()
			h.completeLocally(entry, message.AckTimeout)
			n++
		}
		return true
	})
	if n > 0 {
		h.logger.Info("drained pending requests", zap.Int("count", n))
	}
	return n
}

// Close drains the handler and rejects every later request with ErrClosed.
func (h *Handler) Close() {
	h.closed.Store(true)
	h.Drain()
}
