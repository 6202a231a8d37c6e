//go:build !windows

package runfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive advisory lock on file, so a second concurrent
// reader of the final collapsed run blocks until the first releases it.
// Run-file writers do not take this lock.
func lockFile(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("runfile: lock: %w", err)
	}
	return nil
}

// unlockFile releases the lock acquired by lockFile.
func unlockFile(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("runfile: unlock: %w", err)
	}
	return nil
}
