package testutil

import (
	"errors"
	"sync"

	"dfs-go/internal/dfs"
	"dfs-go/internal/peer"
)

// ErrInjected is returned by FakePeer calls configured to fail.
var ErrInjected = errors.New("injected peer failure")

// FakePeer is an in-memory StoragePeer with switchable faults and per-call counters.
// Safe for concurrent use.
type FakePeer struct {
	*peer.MemoryPeer

	mu         sync.Mutex
	healthErr  error
	failStore  bool
	failRead   bool
	failDelete bool
	calls      map[string]int
}

// NewFakePeer creates a healthy, unbounded FakePeer.
func NewFakePeer(id string) *FakePeer {
	return &FakePeer{
		MemoryPeer: peer.NewMemoryPeer(id, 0),
		calls:      make(map[string]int),
	}
}

// SetHealthErr makes IsHealthy return err. A nil err restores normal probing.
func (f *FakePeer) SetHealthErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthErr = err
}

// FailStore makes Store fail while fail is true.
func (f *FakePeer) FailStore(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStore = fail
}

// FailRead makes Read fail while fail is true.
func (f *FakePeer) FailRead(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRead = fail
}

// FailDelete makes Delete fail while fail is true.
func (f *FakePeer) FailDelete(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete = fail
}

// Calls returns how many times op ("health", "store", "read", "delete") was invoked.
func (f *FakePeer) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakePeer) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *FakePeer) IsHealthy() (bool, error) {
	f.count("health")
	f.mu.Lock()
	err := f.healthErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.MemoryPeer.IsHealthy()
}

func (f *FakePeer) Store(fileID string, data []byte) error {
	f.count("store")
	f.mu.Lock()
	fail := f.failStore
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.MemoryPeer.Store(fileID, data)
}

func (f *FakePeer) Read(fileID string) ([]byte, error) {
	f.count("read")
	f.mu.Lock()
	fail := f.failRead
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.MemoryPeer.Read(fileID)
}

func (f *FakePeer) Delete(fileID string) error {
	f.count("delete")
	f.mu.Lock()
	fail := f.failDelete
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.MemoryPeer.Delete(fileID)
}

// Compile-time check that FakePeer implements dfs.StoragePeer
var _ dfs.StoragePeer = (*FakePeer)(nil)
