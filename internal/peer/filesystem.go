package peer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dfs-go/internal/dfs"
)

const tmpPrefix = ".tmp-"

// FileSystemPeer stores each blob as a file named by its file id under root:
//
//	<root>/
//	  <fileID>     (raw file bytes)
//
// An in-memory index maps file ids to blob paths. It is rebuilt from root when
// the peer is created and guarded by a single lock, which is also held while a
// blob is renamed into place, removed or read.
type FileSystemPeer struct {
	id    string
	root  string
	index map[string]string // file id -> blob path
	mu    sync.RWMutex

	remove func(string) error
}

// NewFileSystemPeer creates a peer rooted at root, creating the directory if
// needed and indexing any blobs already in it.
func NewFileSystemPeer(id, root string) (*FileSystemPeer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create peer root: %w", err)
	}

	p := &FileSystemPeer{
		id:     id,
		root:   root,
		index:  make(map[string]string),
		remove: os.Remove,
	}
	if err := p.loadIndex(); err != nil {
		return nil, err
	}
	return p, nil
}

// loadIndex registers every regular file under root. Leftover temp files from
// interrupted writes are removed.
func (p *FileSystemPeer) loadIndex() error {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return fmt.Errorf("failed to read peer root: %w", err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, tmpPrefix) {
			os.Remove(filepath.Join(p.root, name))
			continue
		}
		p.index[name] = filepath.Join(p.root, name)
	}
	return nil
}

func (p *FileSystemPeer) ID() string {
	return p.id
}

// Root returns the directory holding the peer's blobs.
func (p *FileSystemPeer) Root() string {
	return p.root
}

// IsHealthy reports whether root is a directory the peer can write to.
// An error is returned only when root cannot be inspected at all.
func (p *FileSystemPeer) IsHealthy() (bool, error) {
	info, err := os.Stat(p.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("peer root not accessible: %w", err)
	}
	if !info.IsDir() {
		return false, nil
	}

	check, err := os.CreateTemp(p.root, tmpPrefix+"check-*")
	if err != nil {
		return false, nil
	}
	check.Close()
	os.Remove(check.Name())
	return true, nil
}

// Store writes data under fileID, replacing any previous blob. The bytes are
// written to a temp file first; the rename into place and the index update
// happen under the lock, so the index never names a blob that Delete removed.
func (p *FileSystemPeer) Store(fileID string, data []byte) error {
	if err := checkStore(fileID, data); err != nil {
		return err
	}

	tmpPath, err := writeTemp(p.root, data)
	if err != nil {
		return err
	}

	dest := filepath.Join(p.root, fileID)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	p.index[fileID] = dest
	return nil
}

func (p *FileSystemPeer) Read(fileID string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	blobPath, ok := p.index[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}

	data, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", fileID, err)
	}
	return data, nil
}

// Delete removes fileID from the index and its blob from disk. Deleting an
// unknown id is a no-op. If the blob cannot be removed the index entry is put
// back, so Exists keeps reporting the id.
func (p *FileSystemPeer) Delete(fileID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	blobPath, ok := p.index[fileID]
	if !ok {
		return nil
	}
	delete(p.index, fileID)

	if err := p.remove(blobPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.index[fileID] = blobPath
		return fmt.Errorf("failed to remove blob %s: %w", fileID, err)
	}
	return nil
}

func (p *FileSystemPeer) Exists(fileID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.index[fileID]
	return ok, nil
}

func (p *FileSystemPeer) FreeSpace() (int64, error) {
	return freeSpace(p.root)
}

// writeTemp writes data to a new temp file in dir and returns its path.
// The temp file lives in dir so that renaming it into place is atomic.
func writeTemp(dir string, data []byte) (string, error) {
	tmpFile, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmpPath, nil
}
