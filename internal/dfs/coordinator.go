package dfs

import (
	"strconv"
)

// MinReplicas is the fewest healthy peers an upload will accept.
const MinReplicas = 2

// Coordinator is the orchestration layer between client-facing file operations,
// the metadata store and the storage peers. It validates requests against
// ownership rules, drives metadata mutations, and fans writes out to / reads back
// from peers through the registry.
//
// A Coordinator is safe for concurrent use by multiple requests.
type Coordinator struct {
	store        MetadataStore
	registry     *PeerRegistry
	replicaCount int
	logger       Logger
	metrics      Metrics
}

// NewCoordinator creates a Coordinator that places each upload on up to replicaCount peers.
func NewCoordinator(store MetadataStore, registry *PeerRegistry, replicaCount int, logger Logger, metrics Metrics) *Coordinator {
	return &Coordinator{
		store:        store,
		registry:     registry,
		replicaCount: replicaCount,
		logger:       logger,
		metrics:      metrics,
	}
}

// Registry returns the peer registry used by the coordinator.
func (c *Coordinator) Registry() *PeerRegistry {
	return c.registry
}

// blobID converts a file record id to the key peers store its bytes under.
func blobID(fileID int64) string {
	return strconv.FormatInt(fileID, 10)
}

// deleteFromPeers removes a file's bytes from every listed peer. Failures are
// logged and skipped; metadata stays the source of truth.
func (c *Coordinator) deleteFromPeers(fileID int64, peerIDs []string) {
	id := blobID(fileID)
	for _, peerID := range peerIDs {
		peer, ok := c.registry.Get(peerID)
		if !ok {
			c.logger.Warn("replica peer not registered, bytes left behind", "peer", peerID, "file_id", id)
			continue
		}
		err := peer.Delete(id)
		c.metrics.PeerCall(peerID, "delete", err)
		if err != nil {
			c.logger.Warn("peer delete failed", "peer", peerID, "file_id", id, "error", err)
			continue
		}
		c.logger.Debug("replica deleted", "peer", peerID, "file_id", id)
	}
}

// pathKind resolves which of {file, directory} the owner's path denotes.
func (c *Coordinator) pathKind(p string, ownerID int64) (isFile, isDir bool, err error) {
	file, err := c.store.FindFileByPathAndOwner(p, ownerID)
	if err != nil {
		return false, false, storeError("finding file", err)
	}
	dir, err := c.store.FindDirectoryByPath(p, ownerID)
	if err != nil {
		return false, false, storeError("finding directory", err)
	}
	return file != nil, dir != nil, nil
}
