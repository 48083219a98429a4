package dfs

import (
	"dfs-go/internal/model"
)

// UploadResult is the outcome of one uploaded file. A failed item has a zero
// FileID and a non-nil Err.
type UploadResult struct {
	Path    string
	FileID  int64
	PeerIDs []string // peers that accepted the bytes
	Err     error
}

// OK reports whether the item was uploaded.
func (r UploadResult) OK() bool {
	return r.Err == nil
}

// Upload stores payloads[i] at paths[i] for every i. Each item is handled
// independently: a failed item is reported in its result and never aborts the
// others. The only whole-call error is a length mismatch between paths and payloads.
func (c *Coordinator) Upload(paths []string, payloads [][]byte, ownerID int64) ([]UploadResult, error) {
	if len(paths) != len(payloads) {
		return nil, validationErrorf("got %d paths but %d payloads", len(paths), len(payloads))
	}

	results := make([]UploadResult, len(paths))
	for i := range paths {
		results[i] = c.uploadOne(paths[i], payloads[i], ownerID)
		c.metrics.ItemResult("upload", results[i].Err)
		if results[i].Err != nil {
			c.logger.Error("upload failed", "path", paths[i], "error", results[i].Err)
		}
	}
	return results, nil
}

// uploadOne records a file and writes its bytes to the selected peers, skipping
// peers whose write fails.
func (c *Coordinator) uploadOne(p string, data []byte, ownerID int64) UploadResult {
	result := UploadResult{Path: p}

	if err := validateEntryPath(p, ownerID); err != nil {
		result.Err = err
		return result
	}
	if data == nil {
		data = []byte{}
	}

	file := &model.FileRecord{
		Name:    fileName(p),
		Path:    p,
		Size:    int64(len(data)),
		OwnerID: ownerID,
	}
	if err := c.store.CreateFileRecord(file); err != nil {
		result.Err = storeError("creating file record", err)
		return result
	}

	peers := c.registry.SelectForWrite(c.replicaCount)
	if len(peers) < MinReplicas {
		c.discardRecord(file)
		result.Err = placementErrorf("only %d healthy peers available, need at least %d", len(peers), MinReplicas)
		return result
	}

	id := blobID(file.ID)
	stored := make([]string, 0, len(peers))
	for _, peer := range peers {
		err := peer.Store(id, data)
		c.metrics.PeerCall(peer.ID(), "store", err)
		if err != nil {
			c.logger.Warn("peer store failed", "peer", peer.ID(), "file_id", id, "error", err)
			continue
		}
		stored = append(stored, peer.ID())
	}

	if len(stored) == 0 {
		c.discardRecord(file)
		result.Err = peerIOErrorf("no peer accepted %s", p)
		return result
	}

	if err := c.store.SaveReplicas(file.ID, stored); err != nil {
		c.deleteFromPeers(file.ID, stored)
		c.discardRecord(file)
		result.Err = storeError("saving replicas", err)
		return result
	}

	c.logger.Info("file uploaded", "path", p, "file_id", id, "size", file.Size, "peers", stored)
	result.FileID = file.ID
	result.PeerIDs = stored
	return result
}

// discardRecord makes a best-effort attempt to remove the record of a file whose
// bytes were not stored, so the path can be uploaded again.
func (c *Coordinator) discardRecord(file *model.FileRecord) {
	if err := c.store.DeleteFile(file.ID); err != nil {
		c.logger.Warn("could not remove orphaned file record", "path", file.Path, "file_id", file.ID, "error", err)
	}
}
