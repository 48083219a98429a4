package dfs

import (
	"dfs-go/internal/model"
)

// Listing is the immediate content of a directory.
type Listing struct {
	Path        string
	Directories []*model.Directory
	Files       []*model.FileRecord
}

// List returns the child directories and files of the owner's directory at p.
// The owner's root always exists, even before anything was created in it.
func (c *Coordinator) List(p string, ownerID int64) (*Listing, error) {
	if err := validateDirectoryPath(p, ownerID); err != nil {
		return nil, err
	}

	dir, err := c.store.FindDirectoryByPath(p, ownerID)
	if err != nil {
		return nil, storeError("finding directory", err)
	}
	listing := &Listing{Path: p}
	if dir == nil {
		if p == UserRoot(ownerID) {
			return listing, nil
		}
		return nil, notFoundErrorf("directory not found: %s", p)
	}

	listing.Directories, err = c.store.FindChildDirectories(p, ownerID)
	if err != nil {
		return nil, storeError("listing directories", err)
	}
	listing.Files, err = c.store.FindFilesInDirectory(p, ownerID)
	if err != nil {
		return nil, storeError("listing files", err)
	}
	return listing, nil
}
