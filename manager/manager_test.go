package manager

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mini-reqres/config"
	"mini-reqres/handler"
	"mini-reqres/message"
	"mini-reqres/middleware"
	"mini-reqres/transport"
)

const (
	typeEcho uint16 = 1 // client → server
	typeName uint16 = 2 // server → client
)

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text string `json:"text"`
}

type nameRequest struct{}

type nameResponse struct {
	Name string `json:"name"`
}

type result struct {
	data handler.ResponseData
	code message.AckCode
	resp any
}

func collect(ch chan<- result) handler.ResponseFunc[any] {
	return func(data handler.ResponseData, code message.AckCode, resp any) {
		ch <- result{data, code, resp}
	}
}

func wait(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
		return result{}
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ClientRequestTimeout = time.Second
	cfg.ServerRequestTimeout = time.Second
	return cfg
}

// register installs the same protocol on every peer, whatever its role.
func register(m *Manager, name string) {
	RegisterRequestToServer(m, typeEcho, func(_ handler.RequestData, req echoRequest, res handler.ResultFunc[echoResponse]) {
		res(message.AckSuccess, echoResponse{Text: req.Text}, nil)
	}, nil)
	RegisterRequestToClient(m, typeName, func(_ handler.RequestData, _ nameRequest, res handler.ResultFunc[nameResponse]) {
		res(message.AckSuccess, nameResponse{Name: name}, nil)
	}, nil)
}

type cluster struct {
	network  *transport.MemoryNetwork
	server   *Manager
	clients  []*Manager
	ids      []transport.ConnectionID
	dropRes  atomic.Bool
	requests atomic.Int32
}

func newCluster(t *testing.T, clients int, opts ...Option) *cluster {
	c := &cluster{}
	c.network = transport.NewMemoryNetwork(transport.WithFilter(func(_, _ transport.ConnectionID, channel string, _ []byte) bool {
		if channel == "REQ" {
			c.requests.Add(1)
		}
		return !(channel == "RES" && c.dropRes.Load())
	}))

	c.server = New(c.network.Server(), testConfig(), opts...)
	register(c.server, "server")
	c.server.Start()
	for i := 0; i < clients; i++ {
		ep := c.network.Client()
		m := New(ep, testConfig(), opts...)
		register(m, []string{"one", "two", "three"}[i])
		m.Start()
		c.clients = append(c.clients, m)
		c.ids = append(c.ids, ep.ID())
	}
	t.Cleanup(func() {
		c.server.Close()
		for _, m := range c.clients {
			m.Close()
		}
	})
	return c
}

func TestClientToServer(t *testing.T) {
	c := newCluster(t, 2)

	done := make(chan result, 1)
	require.True(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{Text: "hi"}, nil, collect(done)))

	r := wait(t, done)
	require.Equal(t, message.AckSuccess, r.code)
	require.Equal(t, echoResponse{Text: "hi"}, r.resp)
	require.Equal(t, transport.ServerClientID, r.data.Sender)
	require.Same(t, c.clients[0].ClientHandler(), r.data.Handler)
}

func TestServerToClient(t *testing.T) {
	c := newCluster(t, 2)

	done := make(chan result, 1)
	require.True(t, c.server.SendRequestAsServer(c.ids[1], typeName, nameRequest{}, nil, collect(done)))

	r := wait(t, done)
	require.Equal(t, message.AckSuccess, r.code)
	require.Equal(t, nameResponse{Name: "two"}, r.resp)
	require.Equal(t, c.ids[1], r.data.Sender)
	require.Same(t, c.server.ServerHandler(), r.data.Handler)
}

func TestRoutingBySender(t *testing.T) {
	c := newCluster(t, 1)
	c.dropRes.Store(true)

	require.True(t, c.server.SendRequestAsServer(c.ids[0], typeName, nameRequest{}, nil, nil))
	require.Equal(t, 1, c.server.ServerHandler().PendingCount())
	require.Equal(t, 0, c.server.ClientHandler().PendingCount())

	require.True(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{}, nil, nil))
	require.Equal(t, 1, c.clients[0].ClientHandler().PendingCount())
	require.Equal(t, 0, c.clients[0].ServerHandler().PendingCount())
}

func TestUnregisteredTypeSendsNothing(t *testing.T) {
	c := newCluster(t, 1)

	done := make(chan result, 1)
	require.False(t, c.clients[0].SendRequestAsClient(77, echoRequest{}, nil, collect(done)))
	require.Equal(t, message.AckUnimplemented, wait(t, done).code)
	require.Equal(t, int32(0), c.requests.Load())
}

func TestUnregisterRequestToServer(t *testing.T) {
	c := newCluster(t, 1)
	c.server.UnregisterRequestToServer(typeEcho)

	done := make(chan result, 1)
	require.True(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{}, nil, collect(done)))
	require.Equal(t, message.AckUnimplemented, wait(t, done).code)

	c.clients[0].UnregisterRequestToServer(typeEcho)
	require.False(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{}, nil, collect(done)))
	<-done
}

func TestNotStarted(t *testing.T) {
	network := transport.NewMemoryNetwork()
	m := New(network.Client(), testConfig())
	register(m, "idle")

	done := make(chan result, 1)
	require.False(t, m.Started())
	require.False(t, m.SendRequestAsClient(typeEcho, echoRequest{}, nil, collect(done)))
	require.Equal(t, message.AckUnimplemented, wait(t, done).code)
}

func TestStopDrainsAndRestart(t *testing.T) {
	c := newCluster(t, 1)
	client := c.clients[0]
	c.dropRes.Store(true)

	done := make(chan result, 2)
	require.True(t, client.SendRequestAsClient(typeEcho, echoRequest{Text: "lost"}, nil, collect(done)))
	require.Equal(t, 1, client.ClientHandler().PendingCount())

	client.Stop()
	client.Stop()
	r := wait(t, done)
	require.Equal(t, message.AckTimeout, r.code)
	require.Equal(t, transport.ServerClientID, r.data.Sender)
	require.False(t, client.SendRequestAsClient(typeEcho, echoRequest{}, nil, collect(done)))
	<-done

	// registrations survive a restart
	c.dropRes.Store(false)
	client.Start()
	require.True(t, client.SendRequestAsClient(typeEcho, echoRequest{Text: "back"}, nil, collect(done)))
	r = wait(t, done)
	require.Equal(t, message.AckSuccess, r.code)
	require.Equal(t, echoResponse{Text: "back"}, r.resp)
}

func TestUndecodableFrameDropped(t *testing.T) {
	c := newCluster(t, 1)

	raw := c.network.Client()
	require.NoError(t, raw.Send(transport.ServerClientID, "REQ", []byte{1, 2, 3}))
	require.NoError(t, raw.Send(transport.ServerClientID, "RES", []byte("rs")))

	done := make(chan result, 1)
	require.True(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{Text: "still up"}, nil, collect(done)))
	require.Equal(t, message.AckSuccess, wait(t, done).code)
}

func TestSharedMiddleware(t *testing.T) {
	// burst 1 and no refill: the first request passes, the rest are rejected
	c := newCluster(t, 1, WithMiddleware(middleware.RateLimitMiddleware(0, 1)))

	done := make(chan result, 1)
	require.True(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{}, nil, collect(done)))
	require.Equal(t, message.AckSuccess, wait(t, done).code)

	require.True(t, c.clients[0].SendRequestAsClient(typeEcho, echoRequest{}, nil, collect(done)))
	require.Equal(t, message.AckRateLimited, wait(t, done).code)
}

func TestTCPEndToEnd(t *testing.T) {
	srv, server := startTCPPeer(t, nil, "server")
	client := dialTCPPeer(t, srv.Addr().String(), "tcp-client")

	done := make(chan result, 1)
	require.True(t, client.SendRequestAsClient(typeEcho, echoRequest{Text: "over tcp"}, nil, collect(done)))
	r := wait(t, done)
	require.Equal(t, message.AckSuccess, r.code)
	require.Equal(t, echoResponse{Text: "over tcp"}, r.resp)

	// the echo proves the connection is registered
	peers := srv.Peers()
	require.Len(t, peers, 1)
	require.True(t, server.SendRequestAsServer(peers[0], typeName, nameRequest{}, nil, collect(done)))
	r = wait(t, done)
	require.Equal(t, message.AckSuccess, r.code)
	require.Equal(t, nameResponse{Name: "tcp-client"}, r.resp)
	require.Equal(t, peers[0], r.data.Sender)
}
