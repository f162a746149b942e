package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-reqres/loadbalance"
	"mini-reqres/protocol"
	"mini-reqres/registry"
)

// TCPClient is the client side of a TCP transport: one connection to one server.
//
// A background goroutine (recvLoop) reads frames and dispatches them by channel name;
// every inbound message is reported as coming from ServerClientID. A second goroutine
// sends heartbeats so idle connections are noticed by middleboxes and the server.
type TCPClient struct {
	opts     tcpOptions
	conn     net.Conn
	handlers handlerTable
	sending  sync.Mutex // one writer at a time, otherwise frames interleave
	closed   atomic.Bool
	done     chan struct{}
}

// DialTCP connects to a server at address.
func DialTCP(address string, opts ...TCPOption) (*TCPClient, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	return NewTCPClient(conn, opts...), nil
}

// DialService discovers the servers registered under the configured service name,
// lets bal pick one, and dials it.
func DialService(reg registry.Registry, bal loadbalance.Balancer, opts ...TCPOption) (*TCPClient, error) {
	o := defaultTCPOptions()
	for _, opt := range opts {
		opt(&o)
	}

	endpoints, err := reg.Discover(o.serviceName)
	if err != nil {
		return nil, err
	}
	endpoint, err := bal.Pick(endpoints)
	if err != nil {
		return nil, fmt.Errorf("transport: pick %s endpoint: %w", o.serviceName, err)
	}
	o.logger.Debug("dialing discovered server",
		zap.String("service", o.serviceName),
		zap.String("addr", endpoint.Addr),
		zap.String("balancer", bal.Name()))
	return DialTCP(endpoint.Addr, opts...)
}

// NewTCPClient wraps an established connection and starts its read and heartbeat loops.
func NewTCPClient(conn net.Conn, opts ...TCPOption) *TCPClient {
	c := &TCPClient{
		opts: defaultTCPOptions(),
		conn: conn,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	go c.recvLoop()
	if c.opts.heartbeatInterval > 0 {
		go c.heartbeatLoop(c.opts.heartbeatInterval)
	}
	return c
}

// Send writes a named message to the server. peer must be ServerClientID.
func (c *TCPClient) Send(peer ConnectionID, channel string, data []byte) error {
	if peer != ServerClientID {
		return fmt.Errorf("%w: %d (a client only reaches the server)", ErrUnknownPeer, peer)
	}
	if c.closed.Load() {
		return ErrClosed
	}
	c.sending.Lock()
	defer c.sending.Unlock()
	return protocol.Encode(c.conn, channel, data)
}

func (c *TCPClient) RegisterNamedMessageHandler(channel string, h MessageHandler) {
	c.handlers.register(channel, h)
}

func (c *TCPClient) UnregisterNamedMessageHandler(channel string) {
	c.handlers.unregister(channel)
}

// Done is closed once the connection is gone.
func (c *TCPClient) Done() <-chan struct{} {
	return c.done
}

func (c *TCPClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// recvLoop is the only reader of the connection; frames must be parsed in sequence.
// Dispatch happens inline, so handlers run on this goroutine and must not block.
func (c *TCPClient) recvLoop() {
	defer close(c.done)
	defer c.closed.Store(true)
	for {
		header, channel, body, err := protocol.Decode(c.conn)
		if err != nil {
			if !c.closed.Load() {
				c.opts.logger.Debug("connection to server lost", zap.Error(err))
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if !c.handlers.dispatch(channel, ServerClientID, body) {
			c.opts.logger.Debug("no handler for channel", zap.String("channel", channel))
		}
	}
}

func (c *TCPClient) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.sending.Lock()
		err := protocol.EncodeHeartbeat(c.conn)
		c.sending.Unlock()
		if err != nil {
			return
		}
	}
}
