package loadbalance

import (
	"math/rand"

	"mini-reqres/registry"
)

// WeightedRandomBalancer picks an endpoint with probability proportional to its Weight.
// Endpoints with a non-positive weight count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(endpoints []registry.Endpoint) (*registry.Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	total := 0
	for _, e := range endpoints {
		total += weightOf(e)
	}

	r := rand.Intn(total)
	for i := range endpoints {
		r -= weightOf(endpoints[i])
		if r < 0 {
			return &endpoints[i], nil
		}
	}
	return &endpoints[len(endpoints)-1], nil
}

func weightOf(e registry.Endpoint) int {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
