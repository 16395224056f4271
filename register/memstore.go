package register

import (
	"sync"
)

// MemStore is an in-memory Store, safe for concurrent use. It backs the
// simulator and tests; a real deployment maps registers through the
// controller bridge.
type MemStore struct {
	mx   sync.RWMutex
	vals map[ID]float64
}

var _ Store = &MemStore{}

func NewMemStore() *MemStore {
	return &MemStore{vals: make(map[ID]float64)}
}

func (m *MemStore) Get(id ID) float64 {
	m.mx.RLock()
	defer m.mx.RUnlock()
	v, ok := m.vals[id]
	if !ok {
		return Sentinel
	}
	return v
}

func (m *MemStore) Set(id ID, val float64) {
	m.mx.Lock()
	m.vals[id] = val
	m.mx.Unlock()
}

// Snapshot returns a copy of all set registers.
func (m *MemStore) Snapshot() map[ID]float64 {
	m.mx.RLock()
	defer m.mx.RUnlock()
	cp := make(map[ID]float64, len(m.vals))
	for k, v := range m.vals {
		cp[k] = v
	}
	return cp
}
