// Package registry lets server peers advertise themselves and client peers find them.
package registry

// Endpoint is one reachable server peer.
type Endpoint struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

type Registry interface {
	Register(serviceName string, endpoint Endpoint, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]Endpoint, error)
	Watch(serviceName string) <-chan []Endpoint
}
