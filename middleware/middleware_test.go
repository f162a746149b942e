package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mini-reqres/codec"
	"mini-reqres/handler"
	"mini-reqres/message"
	"mini-reqres/protocol"
	"mini-reqres/transport"
)

const (
	typeEcho uint16 = 1
	typeSlow uint16 = 2
	typeWait uint16 = 3
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text string `json:"text"`
}

// harness is a server engine whose responses land in a channel.
type harness struct {
	engine    *handler.Handler
	clientID  transport.ConnectionID
	responses chan *message.ResponseFrame
	waitErr   chan error
}

func newHarness(t *testing.T, mw handler.Middleware) *harness {
	network := transport.NewMemoryNetwork()
	server := network.Server()
	client := network.Client()

	h := &harness{
		clientID:  client.ID(),
		responses: make(chan *message.ResponseFrame, 16),
		waitErr:   make(chan error, 1),
	}
	client.RegisterNamedMessageHandler(handler.DefaultResponseChannel, func(_ transport.ConnectionID, data []byte) {
		frame, err := protocol.DecodeResponse(data)
		if err != nil {
			t.Errorf("decode response: %v", err)
			return
		}
		h.responses <- frame
	})

	h.engine = handler.New(server, handler.WithMiddleware(mw))
	handler.RegisterRequestHandler(h.engine, typeEcho, func(_ handler.RequestData, req echoRequest, result handler.ResultFunc[echoResponse]) {
		result(message.AckSuccess, echoResponse{Text: req.Text}, nil)
	})
	handler.RegisterRequestHandler(h.engine, typeSlow, func(_ handler.RequestData, req echoRequest, result handler.ResultFunc[echoResponse]) {
		go func() {
			time.Sleep(200 * time.Millisecond)
			result(message.AckSuccess, echoResponse{Text: req.Text}, nil)
		}()
	})
	handler.RegisterRequestHandler(h.engine, typeWait, func(data handler.RequestData, _ echoRequest, _ handler.ResultFunc[echoResponse]) {
		go func() {
			<-data.Context().Done()
			h.waitErr <- data.Context().Err()
		}()
	})
	return h
}

func (h *harness) send(t *testing.T, requestType uint16, id uint32) {
	payload, err := codec.EncodePayload(h.engine.Codec(), echoRequest{Text: "ok"}, nil)
	require.NoError(t, err)
	h.engine.HandleRequest(h.clientID, &message.RequestFrame{RequestType: requestType, RequestID: id, Payload: payload})
}

func (h *harness) next(t *testing.T) *message.ResponseFrame {
	select {
	case f := <-h.responses:
		return f
	case <-time.After(time.Second):
		t.Fatal("no response")
		return nil
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness(t, LoggingMiddleware(zap.New(core)))

	h.send(t, typeEcho, 1)
	require.Equal(t, message.AckSuccess, h.next(t).AckCode)

	entries := logs.FilterMessage("request handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.EqualValues(t, typeEcho, fields["type"])
	require.EqualValues(t, 1, fields["id"])
	require.Equal(t, true, fields["replied"])
}

func TestLoggingUnknownType(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := newHarness(t, LoggingMiddleware(zap.New(core)))

	h.send(t, 99, 4)
	require.Equal(t, message.AckUnimplemented, h.next(t).AckCode)
	require.Equal(t, 1, logs.FilterMessage("request failed").Len())
}

func TestTimeoutPass(t *testing.T) {
	h := newHarness(t, TimeoutMiddleware(500*time.Millisecond))

	h.send(t, typeEcho, 1)
	require.Equal(t, message.AckSuccess, h.next(t).AckCode)
}

func TestTimeoutExceeded(t *testing.T) {
	h := newHarness(t, TimeoutMiddleware(50*time.Millisecond))

	h.send(t, typeSlow, 2)
	frame := h.next(t)
	require.Equal(t, uint32(2), frame.RequestID)
	require.Equal(t, message.AckTimeout, frame.AckCode)

	// the late reply from the slow handler is dropped
	time.Sleep(250 * time.Millisecond)
	require.Len(t, h.responses, 0)
}

func TestTimeoutCancelsContext(t *testing.T) {
	h := newHarness(t, TimeoutMiddleware(30*time.Millisecond))

	h.send(t, typeWait, 3)
	require.Equal(t, message.AckTimeout, h.next(t).AckCode)
	require.ErrorIs(t, <-h.waitErr, context.DeadlineExceeded)
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: the first 2 pass, the third is rejected
	h := newHarness(t, RateLimitMiddleware(1, 2))

	for i := uint32(0); i < 2; i++ {
		h.send(t, typeEcho, i)
		require.Equal(t, message.AckSuccess, h.next(t).AckCode, "request %d", i)
	}

	h.send(t, typeEcho, 2)
	frame := h.next(t)
	require.Equal(t, uint32(2), frame.RequestID)
	require.Equal(t, message.AckRateLimited, frame.AckCode)
}

func TestChain(t *testing.T) {
	var order []string
	trace := func(name string) handler.Middleware {
		return func(next handler.DispatchFunc) handler.DispatchFunc {
			return func(ctx context.Context, req *handler.Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	h := newHarness(t, Chain(trace("outer"), LoggingMiddleware(zap.NewNop()), TimeoutMiddleware(500*time.Millisecond), trace("inner")))
	h.send(t, typeEcho, 1)
	require.Equal(t, message.AckSuccess, h.next(t).AckCode)
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestChainStopsOnError(t *testing.T) {
	reached := false
	fail := func(handler.DispatchFunc) handler.DispatchFunc {
		return func(context.Context, *handler.Request) error {
			return errors.New("dropped")
		}
	}
	mark := func(next handler.DispatchFunc) handler.DispatchFunc {
		return func(ctx context.Context, req *handler.Request) error {
			reached = true
			return next(ctx, req)
		}
	}

	h := newHarness(t, Chain(fail, mark))
	h.send(t, typeEcho, 1)
	require.False(t, reached)
	require.Len(t, h.responses, 0)
}
