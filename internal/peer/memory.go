package peer

import (
	"bytes"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"dfs-go/internal/dfs"
)

// MemoryPeer is an in-memory implementation of dfs.StoragePeer.
// It is useful for testing and single-process setups.
// This implementation is safe for concurrent use.
type MemoryPeer struct {
	id       string
	capacity int64 // 0 means unbounded
	blobs    map[string][]byte
	used     int64
	mu       sync.RWMutex
	down     atomic.Bool
}

// NewMemoryPeer creates an empty in-memory peer. capacity bounds the total
// stored bytes; 0 means unbounded.
func NewMemoryPeer(id string, capacity int64) *MemoryPeer {
	return &MemoryPeer{
		id:       id,
		capacity: capacity,
		blobs:    make(map[string][]byte),
	}
}

func (m *MemoryPeer) ID() string {
	return m.id
}

// SetHealthy marks the peer healthy or unhealthy.
func (m *MemoryPeer) SetHealthy(healthy bool) {
	m.down.Store(!healthy)
}

func (m *MemoryPeer) IsHealthy() (bool, error) {
	return !m.down.Load(), nil
}

func (m *MemoryPeer) Store(fileID string, data []byte) error {
	if err := checkStore(fileID, data); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used - int64(len(m.blobs[fileID])) + int64(len(data))
	if m.capacity > 0 && used > m.capacity {
		return fmt.Errorf("peer %s is full: %d of %d bytes used", m.id, m.used, m.capacity)
	}
	m.blobs[fileID] = bytes.Clone(data)
	m.used = used
	return nil
}

func (m *MemoryPeer) Read(fileID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return bytes.Clone(data), nil
}

func (m *MemoryPeer) Delete(fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= int64(len(m.blobs[fileID]))
	delete(m.blobs, fileID)
	return nil
}

func (m *MemoryPeer) Exists(fileID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[fileID]
	return ok, nil
}

func (m *MemoryPeer) FreeSpace() (int64, error) {
	if m.capacity == 0 {
		return math.MaxInt64, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capacity - m.used, nil
}

// Len returns the number of stored blobs.
func (m *MemoryPeer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Compile-time check that MemoryPeer implements dfs.StoragePeer
var _ dfs.StoragePeer = (*MemoryPeer)(nil)
