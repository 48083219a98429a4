// Package peer provides storage peers: independent stores of raw file bytes
// addressed by file id.
package peer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Read for a file id the peer does not hold.
var ErrNotFound = errors.New("blob not found")

// checkID rejects ids that are empty or could escape a flat namespace.
func checkID(fileID string) error {
	if fileID == "" {
		return fmt.Errorf("file id is empty")
	}
	if fileID == "." || fileID == ".." || strings.ContainsAny(fileID, `/\`) {
		return fmt.Errorf("invalid file id %q", fileID)
	}
	return nil
}

func checkStore(fileID string, data []byte) error {
	if err := checkID(fileID); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("no data for file id %s", fileID)
	}
	return nil
}
