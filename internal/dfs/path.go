package dfs

import (
	"path"
	"strconv"
	"strings"
)

// UserRoot returns the namespace root of a user, e.g. "/user7".
func UserRoot(ownerID int64) string {
	return "/user" + strconv.FormatInt(ownerID, 10)
}

// InNamespace reports whether p is the owner's root or lies below it.
func InNamespace(p string, ownerID int64) bool {
	root := UserRoot(ownerID)
	return p == root || strings.HasPrefix(p, root+"/")
}

// IsDescendant reports whether p lies strictly below dir.
func IsDescendant(p, dir string) bool {
	return strings.HasPrefix(p, dir+"/")
}

// checkPath rejects empty, relative and non-canonical paths
// ("//", trailing "/", "." and ".." segments).
func checkPath(p string) error {
	if p == "" {
		return validationErrorf("path is empty")
	}
	if !strings.HasPrefix(p, "/") {
		return validationErrorf("path is not absolute: %s", p)
	}
	if path.Clean(p) != p {
		return validationErrorf("path is not canonical: %s", p)
	}
	return nil
}

// validateDirectoryPath accepts the owner's root and anything below it.
func validateDirectoryPath(p string, ownerID int64) error {
	if err := checkPath(p); err != nil {
		return err
	}
	if !InNamespace(p, ownerID) {
		return validationErrorf("path must belong to the user: %s", UserRoot(ownerID)+"/")
	}
	return nil
}

// validateEntryPath accepts paths strictly below the owner's root. Files, move
// sources and move destinations can never be the root itself.
func validateEntryPath(p string, ownerID int64) error {
	if err := checkPath(p); err != nil {
		return err
	}
	if !IsDescendant(p, UserRoot(ownerID)) {
		return validationErrorf("path must belong to the user: %s", UserRoot(ownerID)+"/")
	}
	return nil
}

// fileName returns the last segment of a path.
func fileName(p string) string {
	return path.Base(p)
}
