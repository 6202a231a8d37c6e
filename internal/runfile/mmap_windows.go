//go:build windows

package runfile

import (
	"io"
	"os"
)

// mmapFile falls back to reading the whole file on Windows, avoiding
// unsafe pointer arithmetic without an external mmap library.
func mmapFile(f *os.File) ([]byte, error) {
	return io.ReadAll(f)
}

// munmapFile is a no-op for the ReadAll fallback.
func munmapFile(data []byte) error {
	return nil
}
