package dfs

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

var errUnhealthy = errors.New("peer reported unhealthy")

// peerEntry is a registered peer and the result of its most recent health check.
type peerEntry struct {
	peer      StoragePeer
	healthy   atomic.Bool
	checkedAt atomic.Int64 // unix nanoseconds
}

// PeerStatus is a point-in-time view of one registered peer.
type PeerStatus struct {
	ID        string
	Healthy   bool
	CheckedAt time.Time
	FreeSpace int64 // -1 when it could not be determined
	Err       error // health or free-space failure, if any
}

// PeerRegistry holds the known storage peers and their last-known reachability.
// It is populated at startup and read concurrently by many requests; callers need
// no locking. Iteration follows registration order.
type PeerRegistry struct {
	entries sync.Map                 // peer id -> *peerEntry
	order   atomic.Pointer[[]string] // immutable, replaced on Register
	mu      sync.Mutex               // serializes writers of order
	logger  Logger
	clock   Clock
	metrics Metrics
}

// NewPeerRegistry creates an empty registry.
func NewPeerRegistry(logger Logger, clock Clock, metrics Metrics) *PeerRegistry {
	r := &PeerRegistry{
		logger:  logger,
		clock:   clock,
		metrics: metrics,
	}
	r.order.Store(&[]string{})
	return r
}

// Register checks a peer's health and adds it under peerID, replacing any previous handle.
// A peer that is unreachable or unhealthy is omitted and false is returned; the
// system keeps running with fewer peers. Replacing a handle with an omitted peer
// removes the old handle too.
func (r *PeerRegistry) Register(peerID string, peer StoragePeer) bool {
	e := &peerEntry{peer: peer}
	if !r.checkHealth(peerID, e) {
		r.remove(peerID)
		r.logger.Warn("peer omitted from registry", "peer", peerID)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries.Store(peerID, e)
	ids := *r.order.Load()
	if !slices.Contains(ids, peerID) {
		next := make([]string, len(ids), len(ids)+1)
		copy(next, ids)
		next = append(next, peerID)
		r.order.Store(&next)
	}

	r.logger.Info("peer registered", "peer", peerID)
	return true
}

// SelectForWrite returns up to count peers that pass a health check now, in
// registration order. Unhealthy peers are skipped, not retried; fewer than count
// peers are returned when not enough are healthy.
func (r *PeerRegistry) SelectForWrite(count int) []StoragePeer {
	selected := make([]StoragePeer, 0, count)
	for _, id := range *r.order.Load() {
		if len(selected) >= count {
			break
		}
		e, ok := r.entry(id)
		if !ok {
			continue
		}
		if r.checkHealth(id, e) {
			selected = append(selected, e.peer)
		}
	}
	return selected
}

// Get returns the peer registered under peerID.
func (r *PeerRegistry) Get(peerID string) (StoragePeer, bool) {
	e, ok := r.entry(peerID)
	if !ok {
		return nil, false
	}
	return e.peer, true
}

// IsHealthy checks the peer registered under peerID. Unknown peers and check
// errors both count as unhealthy.
func (r *PeerRegistry) IsHealthy(peerID string) bool {
	e, ok := r.entry(peerID)
	if !ok {
		return false
	}
	return r.checkHealth(peerID, e)
}

// IDs returns the registered peer ids in registration order.
func (r *PeerRegistry) IDs() []string {
	return slices.Clone(*r.order.Load())
}

// Len returns the number of registered peers.
func (r *PeerRegistry) Len() int {
	return len(*r.order.Load())
}

// Status checks every peer and reports its health and free space.
func (r *PeerRegistry) Status() []PeerStatus {
	ids := *r.order.Load()
	statuses := make([]PeerStatus, 0, len(ids))
	healthy := 0

	for _, id := range ids {
		e, ok := r.entry(id)
		if !ok {
			continue
		}

		st := PeerStatus{ID: id, FreeSpace: -1}
		healthyNow, err := e.peer.IsHealthy()
		r.record(id, e, healthyNow, err)
		st.Healthy = e.healthy.Load()
		st.CheckedAt = time.Unix(0, e.checkedAt.Load())
		st.Err = err

		if st.Healthy {
			healthy++
			free, err := e.peer.FreeSpace()
			r.metrics.PeerCall(id, "free_space", err)
			if err != nil {
				st.Err = err
			} else {
				st.FreeSpace = free
			}
		}
		statuses = append(statuses, st)
	}

	r.metrics.HealthyPeers(healthy)
	return statuses
}

// remove drops peerID and its position in the registration order.
func (r *PeerRegistry) remove(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries.LoadAndDelete(peerID); !ok {
		return
	}
	ids := *r.order.Load()
	next := slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == peerID })
	r.order.Store(&next)
	r.logger.Info("peer handle dropped", "peer", peerID)
}

func (r *PeerRegistry) entry(peerID string) (*peerEntry, bool) {
	v, ok := r.entries.Load(peerID)
	if !ok {
		return nil, false
	}
	return v.(*peerEntry), true
}

// checkHealth asks the peer for its health and records the result. An error is
// treated as unhealthy and never propagated.
func (r *PeerRegistry) checkHealth(peerID string, e *peerEntry) bool {
	ok, err := e.peer.IsHealthy()
	return r.record(peerID, e, ok, err)
}

func (r *PeerRegistry) record(peerID string, e *peerEntry, ok bool, err error) bool {
	healthy := ok && err == nil
	e.healthy.Store(healthy)
	e.checkedAt.Store(r.clock.Now().UnixNano())

	switch {
	case err != nil:
		r.metrics.PeerCall(peerID, "health", err)
		r.logger.Warn("peer health check failed", "peer", peerID, "error", err)
	case !ok:
		r.metrics.PeerCall(peerID, "health", errUnhealthy)
		r.logger.Warn("peer unhealthy", "peer", peerID)
	default:
		r.metrics.PeerCall(peerID, "health", nil)
	}
	return healthy
}
