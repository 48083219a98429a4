// Package fs maps local files onto remote paths for batch uploads.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Entry is a local regular file and the remote path it is uploaded to.
type Entry struct {
	LocalPath  string
	RemotePath string
	Size       int64
}

// Scan lists the regular files of localDir, mapped below remoteDir with their
// relative layout kept. Subdirectories are descended only when recursive is set.
// Patterns from localDir/.dfsignore are honored; symlinks, devices, pipes and
// sockets are skipped. Entries come in lexical order.
func Scan(localDir, remoteDir string, recursive bool) ([]Entry, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", localDir)
	}

	raw, err := ParseIgnoreFile(filepath.Join(localDir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	ignore := NewIgnoreMatcher(append(raw, defaultIgnorePatterns...))

	var entries []Entry
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == localDir {
			return nil
		}

		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if ignore.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		entries = append(entries, Entry{
			LocalPath:  p,
			RemotePath: path.Join(remoteDir, filepath.ToSlash(rel)),
			Size:       fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return entries, nil
}

// ReadAll loads the content of every entry, in order.
func ReadAll(entries []Entry) (paths []string, payloads [][]byte, err error) {
	paths = make([]string, len(entries))
	payloads = make([][]byte, len(entries))
	for i, e := range entries {
		data, err := os.ReadFile(e.LocalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", e.LocalPath, err)
		}
		paths[i] = e.RemotePath
		payloads[i] = data
	}
	return paths, payloads, nil
}
