package dfs

// Delete removes each path, which must name exactly one of the owner's files or
// directories. Deleting a directory removes everything below it.
//
// Peer deletions are best-effort: a peer that fails or is gone keeps its bytes
// and the metadata is removed anyway. Every path is validated before anything
// is deleted; after that the first failing path rejects the call with a
// *BatchError and earlier paths stay deleted.
func (c *Coordinator) Delete(paths []string, ownerID int64) error {
	for i, p := range paths {
		if err := validateEntryPath(p, ownerID); err != nil {
			return &BatchError{Index: i, Path: p, Err: err}
		}
	}

	for i, p := range paths {
		if err := c.deleteOne(p, ownerID); err != nil {
			return &BatchError{Index: i, Path: p, Err: err}
		}
	}
	return nil
}

func (c *Coordinator) deleteOne(p string, ownerID int64) error {
	isFile, isDir, err := c.pathKind(p, ownerID)
	if err != nil {
		return err
	}

	switch {
	case isFile && isDir:
		return validationErrorf("path is both a file and a directory: %s", p)
	case isFile:
		return c.deleteFile(p, ownerID)
	case isDir:
		return c.deleteDirectory(p, ownerID)
	default:
		return notFoundErrorf("no file or directory at %s", p)
	}
}

func (c *Coordinator) deleteFile(p string, ownerID int64) error {
	file, err := c.store.FindFileByPathAndOwner(p, ownerID)
	if err != nil {
		return storeError("finding file", err)
	}
	if file == nil {
		return notFoundErrorf("file not found: %s", p)
	}

	peerIDs, err := c.store.FindReplicaPeerIDs(file.ID)
	if err != nil {
		return storeError("finding replicas", err)
	}
	c.deleteFromPeers(file.ID, peerIDs)

	if err := c.store.DeleteFile(file.ID); err != nil {
		return storeError("deleting file", err)
	}

	c.logger.Info("file deleted", "path", p, "file_id", file.ID, "replicas", len(peerIDs))
	return nil
}

func (c *Coordinator) deleteDirectory(p string, ownerID int64) error {
	files, err := c.store.FindFilesUnderDirectory(p, ownerID)
	if err != nil {
		return storeError("finding files", err)
	}

	for _, file := range files {
		peerIDs, err := c.store.FindReplicaPeerIDs(file.ID)
		if err != nil {
			return storeError("finding replicas", err)
		}
		c.deleteFromPeers(file.ID, peerIDs)
	}

	if err := c.store.DeleteDirectory(p, ownerID); err != nil {
		return storeError("deleting directory", err)
	}

	c.logger.Info("directory deleted", "path", p, "files", len(files))
	return nil
}
