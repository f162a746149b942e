// Package transport defines the bare named-message transport that the correlation
// engine runs on, and ships three implementations of it:
//
//   - MemoryNetwork: in-process hub, used by tests and embedded peers.
//   - TCPServer:     accepts many peers, assigns each a ConnectionID.
//   - TCPClient:     one connection to a server; every inbound message comes from ServerClientID.
//
// A transport only moves bytes. Delivery is best-effort and unordered across channels;
// correlation, timeouts and typing are the handler package's job.
package transport

import (
	"errors"
	"sync"
)

// ConnectionID identifies a peer on a transport.
type ConnectionID uint64

// ServerClientID is the well-known id of the server peer. Every transport reports
// messages from the server with this sender id.
const ServerClientID ConnectionID = 0

var (
	ErrUnknownPeer = errors.New("transport: unknown peer")
	ErrClosed      = errors.New("transport: closed")
)

// MessageHandler receives one named message. data is owned by the handler.
type MessageHandler func(sender ConnectionID, data []byte)

// Transport sends named byte messages to peers and dispatches inbound ones by channel name.
type Transport interface {
	// Send hands data to the transport for delivery to peer on the named channel.
	// A nil error does not mean the peer received it.
	Send(peer ConnectionID, channel string, data []byte) error
	// RegisterNamedMessageHandler installs h for channel, replacing any previous handler.
	RegisterNamedMessageHandler(channel string, h MessageHandler)
	UnregisterNamedMessageHandler(channel string)
}

// handlerTable is the channel-name dispatch table shared by every implementation.
type handlerTable struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

func (t *handlerTable) register(channel string, h MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handlers == nil {
		t.handlers = make(map[string]MessageHandler)
	}
	t.handlers[channel] = h
}

func (t *handlerTable) unregister(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, channel)
}

// dispatch reports false when no handler is registered for channel.
func (t *handlerTable) dispatch(channel string, sender ConnectionID, data []byte) bool {
	t.mu.RLock()
	h, ok := t.handlers[channel]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	h(sender, data)
	return true
}
