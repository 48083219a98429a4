//go:build !unix

package peer

import (
	"fmt"
	"runtime"
)

func freeSpace(dir string) (int64, error) {
	return 0, fmt.Errorf("free space of %s: not supported on %s", dir, runtime.GOOS)
}
