// Package loadbalance chooses which server peer a client peer connects to when a
// registry advertises several.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity servers
//   - WeightedRandom:  servers with different capacity
//   - ConsistentHash:  sticky placement by key (e.g., player or session id)
package loadbalance

import (
	"errors"

	"mini-reqres/registry"
)

var ErrNoEndpoints = errors.New("loadbalance: no endpoints available")

// Balancer selects one endpoint from the discovered list.
type Balancer interface {
	// Pick must be goroutine-safe.
	Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error)

	// Name returns the strategy name (for logging).
	Name() string
}

// New returns the balancer registered under name, or RoundRobin for an unknown name.
func New(name string) Balancer {
	switch name {
	case "WeightedRandom", "weighted":
		return &WeightedRandomBalancer{}
	}
	return &RoundRobinBalancer{}
}
