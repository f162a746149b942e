package transport

import (
	"sync"
	"sync/atomic"
)

// Filter inspects a message before delivery. Returning false drops it, which is how
// tests simulate an unreliable network.
type Filter func(from, to ConnectionID, channel string, data []byte) bool

// MemoryNetwork connects endpoints inside one process.
//
// The server endpoint always has ServerClientID; client endpoints get ids starting at 1.
// By default a Send delivers synchronously on the sender's goroutine. WithAsyncDelivery
// moves each delivery onto its own goroutine, which also removes any ordering.
type MemoryNetwork struct {
	mu        sync.RWMutex
	endpoints map[ConnectionID]*MemoryEndpoint
	nextID    atomic.Uint64
	async     bool
	filter    Filter
	inflight  sync.WaitGroup
}

type MemoryOption func(*MemoryNetwork)

func WithAsyncDelivery() MemoryOption {
	return func(n *MemoryNetwork) { n.async = true }
}

func WithFilter(f Filter) MemoryOption {
	return func(n *MemoryNetwork) { n.filter = f }
}

func NewMemoryNetwork(opts ...MemoryOption) *MemoryNetwork {
	n := &MemoryNetwork{endpoints: make(map[ConnectionID]*MemoryEndpoint)}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Server returns the server endpoint, creating it on first use.
func (n *MemoryNetwork) Server() *MemoryEndpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ep, ok := n.endpoints[ServerClientID]; ok {
		return ep
	}
	ep := &MemoryEndpoint{id: ServerClientID, network: n}
	n.endpoints[ServerClientID] = ep
	return ep
}

// Client attaches a new client endpoint with a fresh id.
func (n *MemoryNetwork) Client() *MemoryEndpoint {
	ep := &MemoryEndpoint{id: ConnectionID(n.nextID.Add(1)), network: n}
	n.mu.Lock()
	n.endpoints[ep.id] = ep
	n.mu.Unlock()
	return ep
}

// Disconnect detaches an endpoint; later sends to or from it fail with ErrUnknownPeer.
func (n *MemoryNetwork) Disconnect(id ConnectionID) {
	n.mu.Lock()
	delete(n.endpoints, id)
	n.mu.Unlock()
}

// Wait blocks until every asynchronous delivery started so far has returned.
func (n *MemoryNetwork) Wait() {
	n.inflight.Wait()
}

func (n *MemoryNetwork) deliver(from, to ConnectionID, channel string, data []byte) error {
	n.mu.RLock()
	_, known := n.endpoints[from]
	target, ok := n.endpoints[to]
	n.mu.RUnlock()
	if !known || !ok {
		return ErrUnknownPeer
	}
	if n.filter != nil && !n.filter(from, to, channel, data) {
		return nil
	}

	// The receiver owns its bytes; the sender may reuse its buffer.
	buf := make([]byte, len(data))
	copy(buf, data)

	if !n.async {
		target.handlers.dispatch(channel, from, buf)
		return nil
	}
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		target.handlers.dispatch(channel, from, buf)
	}()
	return nil
}

// MemoryEndpoint is one peer on a MemoryNetwork. It implements Transport.
type MemoryEndpoint struct {
	id       ConnectionID
	network  *MemoryNetwork
	handlers handlerTable
}

func (e *MemoryEndpoint) ID() ConnectionID { return e.id }

func (e *MemoryEndpoint) Send(peer ConnectionID, channel string, data []byte) error {
	return e.network.deliver(e.id, peer, channel, data)
}

func (e *MemoryEndpoint) RegisterNamedMessageHandler(channel string, h MessageHandler) {
	e.handlers.register(channel, h)
}

func (e *MemoryEndpoint) UnregisterNamedMessageHandler(channel string) {
	e.handlers.unregister(channel)
}
