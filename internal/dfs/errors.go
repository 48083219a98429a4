package dfs

import (
	"errors"
	"fmt"
)

// Error kinds returned by the Coordinator. Every error it returns wraps exactly
// one of these, so callers can classify failures with errors.Is.
var (
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown path or user.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied marks a request by a user without a grant on the target.
	ErrAccessDenied = errors.New("access denied")

	// ErrPlacement marks an upload that could not find enough healthy peers.
	ErrPlacement = errors.New("placement failure")

	// ErrPeerIO marks a failure of every candidate peer for an item.
	ErrPeerIO = errors.New("peer i/o failure")

	// ErrMetadataTx marks a metadata update that failed and was rolled back.
	ErrMetadataTx = errors.New("metadata transaction failure")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func accessDeniedErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, fmt.Sprintf(format, args...))
}

func placementErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPlacement, fmt.Sprintf(format, args...))
}

func peerIOErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPeerIO, fmt.Sprintf(format, args...))
}

// storeError classifies a MetadataStore failure. Errors the store already tagged
// with a kind keep it; anything else is a failed metadata transaction.
func storeError(action string, err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrAccessDenied} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%s: %w", action, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrMetadataTx, action, err)
}

// BatchError rejects a whole batch call. Index and Path identify the entry that
// caused the rejection; entries before Index may already have been applied.
type BatchError struct {
	Index int
	Path  string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", e.Index, e.Path, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
