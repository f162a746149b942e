package loadbalance

import (
	"errors"
	"fmt"
	"testing"

	"mini-reqres/registry"
)

var testEndpoints = []registry.Endpoint{
	{Addr: ":8001", Weight: 10, Version: "1.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		e, err := b.Pick(testEndpoints)
		if err != nil {
			t.Fatal(err)
		}
		results[i] = e.Addr
	}
	if results[0] != ":8001" || results[1] != ":8002" || results[2] != ":8003" {
		t.Fatalf("expect endpoints in order, got %v", results)
	}

	e, _ := b.Pick(testEndpoints)
	if e.Addr != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], e.Addr)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	if _, err := b.Pick(nil); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expect ErrNoEndpoints, got %v", err)
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		e, err := b.Pick(testEndpoints)
		if err != nil {
			t.Fatal(err)
		}
		counts[e.Addr]++
	}

	// Weights are 10:5:10, so :8001 should see about twice the traffic of :8002
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio :8001/:8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	e, err := b.Pick([]registry.Endpoint{{Addr: ":1"}})
	if err != nil || e.Addr != ":1" {
		t.Fatalf("zero weight endpoint should still be picked, got %v, %v", e, err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()
	if _, err := b.PickKey("anything"); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expect ErrNoEndpoints on empty ring, got %v", err)
	}
	for i := range testEndpoints {
		b.Add(&testEndpoints[i])
	}

	e1, _ := b.PickKey("player-123")
	e2, _ := b.PickKey("player-123")
	if e1.Addr != e2.Addr {
		t.Fatalf("same key mapped to different endpoints: %s vs %s", e1.Addr, e2.Addr)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		e, _ := b.PickKey(fmt.Sprintf("key-%d", i))
		seen[e.Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different endpoints, got %d", len(seen))
	}
}

func TestNew(t *testing.T) {
	if New("weighted").Name() != "WeightedRandom" {
		t.Error("expect WeightedRandom")
	}
	if New("").Name() != "RoundRobin" {
		t.Error("expect RoundRobin default")
	}
}
