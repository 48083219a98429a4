package dfs

// StoragePeer is the contract implemented by every storage node.
// Implementations may be local (in-process) or remote clients; the coordinator
// never assumes a particular transport. Blobs are addressed by file id, never by path.
type StoragePeer interface {
	// ID returns the stable peer id.
	ID() string

	// IsHealthy reports whether the peer can currently accept reads and writes.
	// An unhealthy peer returns (false, nil); an error means the peer is unreachable.
	IsHealthy() (bool, error)

	// Store writes (or overwrites) the blob for fileID.
	// It fails if fileID is empty or data is nil.
	Store(fileID string, data []byte) error

	// Read returns the full blob for fileID, or an error if it is unknown.
	Read(fileID string) ([]byte, error)

	// Delete removes the blob for fileID. Deleting an absent blob is not an error.
	Delete(fileID string) error

	// Exists reports whether the peer holds a blob for fileID.
	Exists(fileID string) (bool, error)

	// FreeSpace returns the remaining capacity in bytes.
	FreeSpace() (int64, error)
}
