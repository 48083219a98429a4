package dfs

// Metrics receives coordination events. Implementations must be safe for concurrent use.
type Metrics interface {
	// PeerCall records a single call to a peer; err is nil on success.
	PeerCall(peerID, op string, err error)

	// ItemResult records the outcome of one item of a batch operation.
	ItemResult(op string, err error)

	// HealthyPeers records the number of peers that passed their latest health check.
	HealthyPeers(n int)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) PeerCall(string, string, error) {}
func (NopMetrics) ItemResult(string, error)       {}
func (NopMetrics) HealthyPeers(int)               {}
