package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-reqres/protocol"
	"mini-reqres/registry"
)

// TCPServer is the server side of a TCP transport.
//
// Pipeline per connection:
//
//	Accept → handleConn (single goroutine reads frames)
//	  → for each named message: go dispatch (parallel, unordered)
//
// Each accepted connection gets the next ConnectionID starting at 1; ServerClientID (0)
// is reserved for the server itself.
type TCPServer struct {
	opts     tcpOptions
	listener net.Listener
	handlers handlerTable

	mu     sync.RWMutex
	conns  map[ConnectionID]*serverConn
	nextID atomic.Uint64

	wg       sync.WaitGroup // in-flight dispatches, waited on by Shutdown
	shutdown atomic.Bool    // set before the listener closes to suppress the Accept error

	registry      registry.Registry
	advertiseAddr string
}

// serverConn pairs a connection with its write lock; all goroutines answering on the
// same connection share it so frames never interleave.
type serverConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

func NewTCPServer(opts ...TCPOption) *TCPServer {
	s := &TCPServer{
		opts:  defaultTCPOptions(),
		conns: make(map[ConnectionID]*serverConn),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// Listen binds the listener. Call Serve afterwards to start accepting.
func (s *TCPServer) Listen(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", address, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve registers the server in reg (when non-nil) under advertiseAddr and runs the
// Accept loop until Shutdown.
//
// advertiseAddr differs from the listen address because ":7777" is not routable for
// other hosts; pass e.g. "10.0.0.5:7777".
func (s *TCPServer) Serve(advertiseAddr string, reg registry.Registry) error {
	if s.listener == nil {
		return errors.New("transport: Serve called before Listen")
	}

	if reg != nil {
		if advertiseAddr == "" {
			advertiseAddr = s.listener.Addr().String()
		}
		s.registry = reg
		s.advertiseAddr = advertiseAddr
		if err := reg.Register(s.opts.serviceName, registry.Endpoint{Addr: advertiseAddr, Weight: 1}, s.opts.registerTTL); err != nil {
			return err
		}
	}

	s.opts.logger.Info("tcp server serving", zap.Stringer("addr", s.listener.Addr()))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) handleConn(conn net.Conn) {
	id := ConnectionID(s.nextID.Add(1))
	sc := &serverConn{conn: conn}

	s.mu.Lock()
	s.conns[id] = sc
	s.mu.Unlock()

	log := s.opts.logger.With(zap.Uint64("conn", uint64(id)), zap.Stringer("remote", conn.RemoteAddr()))
	log.Debug("peer connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		conn.Close()
		log.Debug("peer disconnected")
	}()

	// Shutdown may have swept s.conns before this connection was added.
	if s.shutdown.Load() {
		return
	}

	for {
		header, channel, body, err := protocol.Decode(conn)
		if err != nil {
			if pe, ok := protocol.IsProtocolError(err); ok {
				log.Warn("dropping connection on bad frame", zap.Error(pe))
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if !s.handlers.dispatch(channel, id, body) {
				log.Debug("no handler for channel", zap.String("channel", channel))
			}
		}()
	}
}

// Send writes one named message to the connection identified by peer.
func (s *TCPServer) Send(peer ConnectionID, channel string, data []byte) error {
	s.mu.RLock()
	sc, ok := s.conns[peer]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPeer, peer)
	}

	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return protocol.Encode(sc.conn, channel, data)
}

func (s *TCPServer) RegisterNamedMessageHandler(channel string, h MessageHandler) {
	s.handlers.register(channel, h)
}

func (s *TCPServer) UnregisterNamedMessageHandler(channel string) {
	s.handlers.unregister(channel)
}

// Peers returns the ids of the currently connected peers.
func (s *TCPServer) Peers() []ConnectionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ConnectionID, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry so clients stop dialing this server
//  2. Set the shutdown flag, then close the listener
//  3. Wait for in-flight dispatches (bounded by timeout)
//  4. Close every peer connection
func (s *TCPServer) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		if err := s.registry.Deregister(s.opts.serviceName, s.advertiseAddr); err != nil {
			s.opts.logger.Warn("deregister failed", zap.Error(err))
		}
	}

	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("transport: timeout waiting for in-flight dispatch")
	}

	s.mu.Lock()
	for _, sc := range s.conns {
		sc.conn.Close()
	}
	s.mu.Unlock()
	return err
}
