package dfs

// CreateDirectories creates each path, together with any missing ancestors, in the
// owner's namespace. Existing directories are reused, so repeating a call is a no-op.
//
// Paths are processed in order. The first invalid path rejects the call with a
// *BatchError; directories created for earlier paths are kept.
func (c *Coordinator) CreateDirectories(paths []string, ownerID int64) error {
	for i, p := range paths {
		if err := validateDirectoryPath(p, ownerID); err != nil {
			return &BatchError{Index: i, Path: p, Err: err}
		}

		if _, err := c.store.CreateDirectory(p, ownerID); err != nil {
			return &BatchError{Index: i, Path: p, Err: storeError("creating directory", err)}
		}
		c.logger.Info("directory created", "path", p, "owner", ownerID)
	}
	return nil
}
