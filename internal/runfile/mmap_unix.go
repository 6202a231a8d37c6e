//go:build !windows

package runfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps f read-only, letting the final collapsed run be
// scanned without copying it through a staging buffer.
func mmapFile(f *os.File) ([]byte, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("runfile: stat: %w", err)
	}
	size := stat.Size()
	if size == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("runfile: mmap: %w", err)
	}
	return data, nil
}

// munmapFile unmaps memory obtained from mmapFile. Safe to call with nil.
func munmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("runfile: munmap: %w", err)
	}
	return nil
}
