package dfs

// DownloadResult is the outcome of one downloaded file. A failed item has nil
// Data and a non-nil Err.
type DownloadResult struct {
	Path   string
	Data   []byte
	PeerID string // peer that served the bytes
	Err    error
}

// OK reports whether the item was downloaded.
func (r DownloadResult) OK() bool {
	return r.Err == nil
}

// Download fetches the bytes of each path on behalf of userID. Each item fails
// or succeeds on its own; there is no whole-call error.
func (c *Coordinator) Download(paths []string, userID int64) []DownloadResult {
	results := make([]DownloadResult, len(paths))
	for i, p := range paths {
		results[i] = c.downloadOne(p, userID)
		c.metrics.ItemResult("download", results[i].Err)
		if results[i].Err != nil {
			c.logger.Error("download failed", "path", p, "error", results[i].Err)
		}
	}
	return results
}

// downloadOne tries the file's replica peers in assignment order and returns the
// first successful read. Absent, unhealthy and failing peers are skipped.
func (c *Coordinator) downloadOne(p string, userID int64) DownloadResult {
	result := DownloadResult{Path: p}

	if err := checkPath(p); err != nil {
		result.Err = err
		return result
	}

	file, err := c.store.FindFileByPath(p)
	if err != nil {
		result.Err = storeError("finding file", err)
		return result
	}
	if file == nil {
		result.Err = notFoundErrorf("file not found: %s", p)
		return result
	}

	allowed, err := c.store.HasReadAccess(userID, file.ID)
	if err != nil {
		result.Err = storeError("checking access", err)
		return result
	}
	if !allowed {
		result.Err = accessDeniedErrorf("no read access to %s", p)
		return result
	}

	peerIDs, err := c.store.FindReplicaPeerIDs(file.ID)
	if err != nil {
		result.Err = storeError("finding replicas", err)
		return result
	}
	if len(peerIDs) == 0 {
		result.Err = peerIOErrorf("no replicas available for %s", p)
		return result
	}

	id := blobID(file.ID)
	for _, peerID := range peerIDs {
		peer, ok := c.registry.Get(peerID)
		if !ok {
			c.logger.Debug("replica peer not registered", "peer", peerID, "file_id", id)
			continue
		}
		if !c.registry.IsHealthy(peerID) {
			continue
		}

		data, err := peer.Read(id)
		c.metrics.PeerCall(peerID, "read", err)
		if err != nil {
			c.logger.Warn("peer read failed", "peer", peerID, "file_id", id, "error", err)
			continue
		}

		c.logger.Debug("file downloaded", "path", p, "file_id", id, "peer", peerID)
		result.Data = data
		result.PeerID = peerID
		return result
	}

	result.Err = peerIOErrorf("could not read %s from any of %d replicas", p, len(peerIDs))
	return result
}
