package registry

import "sync"

// MemoryRegistry is a process-local Registry for tests and single-host setups.
// TTLs are ignored.
type MemoryRegistry struct {
	mu        sync.Mutex
	endpoints map[string][]Endpoint
	watchers  map[string][]chan []Endpoint
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		endpoints: make(map[string][]Endpoint),
		watchers:  make(map[string][]chan []Endpoint),
	}
}

func (m *MemoryRegistry) Register(serviceName string, endpoint Endpoint, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.endpoints[serviceName]
	for i, e := range list {
		if e.Addr == endpoint.Addr {
			list[i] = endpoint
			m.notify(serviceName)
			return nil
		}
	}
	m.endpoints[serviceName] = append(list, endpoint)
	m.notify(serviceName)
	return nil
}

func (m *MemoryRegistry) Deregister(serviceName string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.endpoints[serviceName]
	for i, e := range list {
		if e.Addr == addr {
			m.endpoints[serviceName] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	m.notify(serviceName)
	return nil
}

func (m *MemoryRegistry) Discover(serviceName string) ([]Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Endpoint(nil), m.endpoints[serviceName]...), nil
}

func (m *MemoryRegistry) Watch(serviceName string) <-chan []Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []Endpoint, 1)
	m.watchers[serviceName] = append(m.watchers[serviceName], ch)
	return ch
}

// notify keeps only the newest list in each watcher's buffer. Caller holds m.mu.
func (m *MemoryRegistry) notify(serviceName string) {
	snapshot := append([]Endpoint(nil), m.endpoints[serviceName]...)
	for _, ch := range m.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
