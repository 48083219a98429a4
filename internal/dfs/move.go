package dfs

// Move renames oldPaths[i] to newPaths[i] for every i. Sources may be files or
// directories; moving a directory moves everything below it. Peer-held bytes are
// addressed by file id and are never touched.
//
// Every pair is validated before anything is moved. After that the pairs are
// applied in order and the first failing pair rejects the call with a
// *BatchError; earlier pairs stay moved.
func (c *Coordinator) Move(oldPaths, newPaths []string, ownerID int64) error {
	if len(oldPaths) != len(newPaths) {
		return validationErrorf("got %d source paths but %d destination paths", len(oldPaths), len(newPaths))
	}

	for i := range oldPaths {
		if err := validateMove(oldPaths[i], newPaths[i], ownerID); err != nil {
			return &BatchError{Index: i, Path: oldPaths[i], Err: err}
		}
	}

	for i := range oldPaths {
		if err := c.moveOne(oldPaths[i], newPaths[i], ownerID); err != nil {
			return &BatchError{Index: i, Path: oldPaths[i], Err: err}
		}
	}
	return nil
}

func validateMove(oldPath, newPath string, ownerID int64) error {
	if err := validateEntryPath(oldPath, ownerID); err != nil {
		return err
	}
	if err := validateEntryPath(newPath, ownerID); err != nil {
		return err
	}
	if oldPath == newPath {
		return validationErrorf("source and destination are the same: %s", oldPath)
	}
	return nil
}

func (c *Coordinator) moveOne(oldPath, newPath string, ownerID int64) error {
	isFile, isDir, err := c.pathKind(oldPath, ownerID)
	if err != nil {
		return err
	}
	switch {
	case isFile && isDir:
		return validationErrorf("path is both a file and a directory: %s", oldPath)
	case !isFile && !isDir:
		return notFoundErrorf("no file or directory at %s", oldPath)
	}

	destFile, destDir, err := c.pathKind(newPath, ownerID)
	if err != nil {
		return err
	}
	if destFile || destDir {
		return validationErrorf("destination already exists: %s", newPath)
	}

	if isFile {
		if err := c.store.MoveFile(oldPath, newPath, ownerID); err != nil {
			return storeError("moving file", err)
		}
		c.logger.Info("file moved", "from", oldPath, "to", newPath)
		return nil
	}

	if IsDescendant(newPath, oldPath) {
		return validationErrorf("cannot move %s into itself", oldPath)
	}
	if err := c.store.MoveDirectory(oldPath, newPath, ownerID); err != nil {
		return storeError("moving directory", err)
	}
	c.logger.Info("directory moved", "from", oldPath, "to", newPath)
	return nil
}
