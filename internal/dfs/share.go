package dfs

import (
	"dfs-go/internal/model"
)

// Share grants the user registered with granteeEmail the given permission on
// each path. A file path yields one grant; a directory path yields one grant per
// file below it and fails when the directory holds no files. Granting again
// replaces the permission of the existing grant.
//
// Paths are applied in order and the first failing path rejects the call with a
// *BatchError; grants made for earlier paths are kept.
func (c *Coordinator) Share(paths []string, granteeEmail string, permission model.Permission, ownerID int64) error {
	if !permission.Valid() {
		return validationErrorf("invalid permission %q, want %q or %q", permission, model.PermissionRead, model.PermissionWrite)
	}

	grantee, err := c.resolveGrantee(granteeEmail, ownerID)
	if err != nil {
		return err
	}

	for i, p := range paths {
		files, err := c.shareTargets(p, ownerID)
		if err != nil {
			return &BatchError{Index: i, Path: p, Err: err}
		}
		for _, file := range files {
			if err := c.store.CreateShare(file.ID, grantee.ID, permission); err != nil {
				return &BatchError{Index: i, Path: p, Err: storeError("creating share", err)}
			}
		}
		c.logger.Info("shared", "path", p, "grantee", grantee.ID, "permission", permission, "files", len(files))
	}
	return nil
}

// RevokeShares removes the grants of the user registered with granteeEmail on
// each path, expanding directories the same way Share does. Revoking a grant
// that does not exist is not an error.
func (c *Coordinator) RevokeShares(paths []string, granteeEmail string, ownerID int64) error {
	grantee, err := c.resolveGrantee(granteeEmail, ownerID)
	if err != nil {
		return err
	}

	for i, p := range paths {
		files, err := c.shareTargets(p, ownerID)
		if err != nil {
			return &BatchError{Index: i, Path: p, Err: err}
		}
		for _, file := range files {
			if err := c.store.DeleteShare(file.ID, grantee.ID); err != nil {
				return &BatchError{Index: i, Path: p, Err: storeError("deleting share", err)}
			}
		}
		c.logger.Info("share revoked", "path", p, "grantee", grantee.ID, "files", len(files))
	}
	return nil
}

func (c *Coordinator) resolveGrantee(email string, ownerID int64) (*model.User, error) {
	if email == "" {
		return nil, validationErrorf("grantee email is empty")
	}
	grantee, err := c.store.FindUserByEmail(email)
	if err != nil {
		return nil, storeError("finding grantee", err)
	}
	if grantee == nil {
		return nil, notFoundErrorf("no user with email %s", email)
	}
	if grantee.ID == ownerID {
		return nil, validationErrorf("cannot share with yourself")
	}
	return grantee, nil
}

// shareTargets returns the files a share on p applies to.
func (c *Coordinator) shareTargets(p string, ownerID int64) ([]*model.FileRecord, error) {
	if err := validateDirectoryPath(p, ownerID); err != nil {
		return nil, err
	}

	file, err := c.store.FindFileByPathAndOwner(p, ownerID)
	if err != nil {
		return nil, storeError("finding file", err)
	}
	if file != nil {
		return []*model.FileRecord{file}, nil
	}

	dir, err := c.store.FindDirectoryByPath(p, ownerID)
	if err != nil {
		return nil, storeError("finding directory", err)
	}
	if dir == nil {
		return nil, notFoundErrorf("no file or directory at %s", p)
	}

	files, err := c.store.FindFilesUnderDirectory(p, ownerID)
	if err != nil {
		return nil, storeError("finding files", err)
	}
	if len(files) == 0 {
		return nil, validationErrorf("cannot share empty directory %s", p)
	}
	return files, nil
}
