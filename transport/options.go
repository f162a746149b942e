package transport

import (
	"time"

	"go.uber.org/zap"
)

type tcpOptions struct {
	logger            *zap.Logger
	heartbeatInterval time.Duration
	serviceName       string
	registerTTL       int64
}

// TCPOption configures a TCPServer or TCPClient.
type TCPOption func(*tcpOptions)

func defaultTCPOptions() tcpOptions {
	return tcpOptions{
		logger:            zap.NewNop(),
		heartbeatInterval: 30 * time.Second,
		serviceName:       "reqres",
		registerTTL:       10,
	}
}

func WithLogger(l *zap.Logger) TCPOption {
	return func(o *tcpOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHeartbeatInterval sets how often a TCPClient probes its connection. Zero disables heartbeats.
func WithHeartbeatInterval(d time.Duration) TCPOption {
	return func(o *tcpOptions) { o.heartbeatInterval = d }
}

// WithServiceName sets the name a TCPServer registers under.
func WithServiceName(name string) TCPOption {
	return func(o *tcpOptions) { o.serviceName = name }
}
