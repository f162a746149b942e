// Package manager runs both roles of a request/response peer on one transport.
//
// A Manager owns two engines: the server-role engine handles everything that arrives
// from a client (sender != ServerClientID) and the client-role engine everything that
// arrives from the server. The same process can therefore answer requests and issue its
// own in either direction.
package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-reqres/codec"
	"mini-reqres/config"
	"mini-reqres/handler"
	"mini-reqres/message"
	"mini-reqres/middleware"
	"mini-reqres/protocol"
	"mini-reqres/transport"
)

type Manager struct {
	cfg       config.Config
	transport transport.Transport
	logger    *zap.Logger

	server *handler.Handler
	client *handler.Handler

	mu      sync.Mutex // serializes Start and Stop
	started atomic.Bool
}

type options struct {
	logger      *zap.Logger
	codec       codec.Codec
	middlewares []handler.Middleware
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodec overrides the codec named by the configuration.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithMiddleware appends inbound dispatch middlewares; both engines share them.
func WithMiddleware(mw ...handler.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mw...) }
}

// New creates a stopped Manager. cfg is expected to be valid.
func New(tr transport.Transport, cfg config.Config, opts ...Option) *Manager {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec = codec.GetCodec(cfg.CodecType())
	}

	common := []handler.Option{
		handler.WithLogger(o.logger),
		handler.WithCodec(o.codec),
		handler.WithChannels(cfg.RequestMessageName, cfg.ResponseMessageName),
		handler.WithMaxPending(cfg.MaxPending),
	}
	if len(o.middlewares) > 0 {
		common = append(common, handler.WithMiddleware(middleware.Chain(o.middlewares...)))
	}

	return &Manager{
		cfg:       cfg,
		transport: tr,
		logger:    o.logger.Named("manager"),
		server:    handler.New(tr, append([]handler.Option{handler.WithName("server")}, common...)...),
		client:    handler.New(tr, append([]handler.Option{handler.WithName("client")}, common...)...),
	}
}

// Start installs the request and response channel handlers on the transport.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started.Load() {
		return
	}
	m.transport.RegisterNamedMessageHandler(m.cfg.RequestMessageName, m.onRequest)
	m.transport.RegisterNamedMessageHandler(m.cfg.ResponseMessageName, m.onResponse)
	m.started.Store(true)
	m.logger.Info("started",
		zap.String("request_channel", m.cfg.RequestMessageName),
		zap.String("response_channel", m.cfg.ResponseMessageName))
}

// Stop removes the channel handlers and completes every pending request with
// AckTimeout. Registrations survive, so the Manager can be started again.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started.Load() {
		m.mu.Unlock()
		return
	}
	m.started.Store(false)
	m.transport.UnregisterNamedMessageHandler(m.cfg.RequestMessageName)
	m.transport.UnregisterNamedMessageHandler(m.cfg.ResponseMessageName)
	m.mu.Unlock()

	// callbacks may call back into the Manager
	drained := m.server.Drain() + m.client.Drain()
	m.logger.Info("stopped", zap.Int("drained", drained))
}

// Close stops the Manager for good; later sends are rejected.
func (m *Manager) Close() {
	m.Stop()
	m.server.Close()
	m.client.Close()
}

func (m *Manager) Started() bool { return m.started.Load() }

func (m *Manager) ServerHandler() *handler.Handler { return m.server }
func (m *Manager) ClientHandler() *handler.Handler { return m.client }

// route picks the engine responsible for traffic from sender.
func (m *Manager) route(sender transport.ConnectionID) *handler.Handler {
	if sender != transport.ServerClientID {
		return m.server
	}
	return m.client
}

func (m *Manager) onRequest(sender transport.ConnectionID, data []byte) {
	frame, err := protocol.DecodeRequest(data)
	if err != nil {
		m.logger.Warn("dropping undecodable request", zap.Uint64("sender", uint64(sender)), zap.Error(err))
		return
	}
	m.route(sender).HandleRequest(sender, frame)
}

func (m *Manager) onResponse(sender transport.ConnectionID, data []byte) {
	frame, err := protocol.DecodeResponse(data)
	if err != nil {
		m.logger.Warn("dropping undecodable response", zap.Uint64("sender", uint64(sender)), zap.Error(err))
		return
	}
	m.route(sender).HandleResponse(sender, frame)
}

// SendRequestAsServer sends a server-originated request to the client peer. It reports
// false when the request was rejected before anything was sent; onResponse has then
// already been called with AckUnimplemented.
func (m *Manager) SendRequestAsServer(
	peer transport.ConnectionID,
	requestType uint16,
	request any,
	extra handler.ExtraWriter,
	onResponse handler.ResponseFunc[any],
) bool {
	return m.send(m.server, peer, requestType, request, extra, onResponse, m.cfg.ServerRequestTimeout)
}

// SendRequestAsClient sends a request to the server. See SendRequestAsServer.
func (m *Manager) SendRequestAsClient(
	requestType uint16,
	request any,
	extra handler.ExtraWriter,
	onResponse handler.ResponseFunc[any],
) bool {
	return m.send(m.client, transport.ServerClientID, requestType, request, extra, onResponse, m.cfg.ClientRequestTimeout)
}

func (m *Manager) send(
	engine *handler.Handler,
	peer transport.ConnectionID,
	requestType uint16,
	request any,
	extra handler.ExtraWriter,
	onResponse handler.ResponseFunc[any],
	timeout time.Duration,
) bool {
	if !m.started.Load() {
		m.logger.Warn("request before Start", zap.String("engine", engine.Name()), zap.Uint16("type", requestType))
		if onResponse != nil {
			onResponse(handler.ResponseData{
				Sender:  transport.ServerClientID,
				Handler: engine,
				Extra:   codec.NewReader(nil),
			}, message.AckUnimplemented, nil)
		}
		return false
	}
	return engine.CreateAndSendRequest(peer, requestType, request, extra, onResponse, timeout) == nil
}

// RegisterRequestToServer declares a request type that clients send to the server: fn
// answers it on the server-role engine, onResponse (optional) observes every completion
// on the client-role engine.
func RegisterRequestToServer[Req, Resp any](m *Manager, requestType uint16, fn handler.RequestFunc[Req, Resp], onResponse handler.ResponseFunc[Resp]) {
	handler.RegisterRequestHandler(m.server, requestType, fn)
	handler.RegisterResponseHandler[Req](m.client, requestType, onResponse)
}

// RegisterRequestToClient declares a request type that the server sends to clients.
func RegisterRequestToClient[Req, Resp any](m *Manager, requestType uint16, fn handler.RequestFunc[Req, Resp], onResponse handler.ResponseFunc[Resp]) {
	handler.RegisterRequestHandler(m.client, requestType, fn)
	handler.RegisterResponseHandler[Req](m.server, requestType, onResponse)
}

func (m *Manager) UnregisterRequestToServer(requestType uint16) {
	m.server.UnregisterRequestHandler(requestType)
	m.client.UnregisterResponseHandler(requestType)
}

func (m *Manager) UnregisterRequestToClient(requestType uint16) {
	m.client.UnregisterRequestHandler(requestType)
	m.server.UnregisterResponseHandler(requestType)
}
