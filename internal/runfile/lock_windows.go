//go:build windows

package runfile

import "os"

// lockFile is a no-op on Windows. Robust locking there needs
// syscall.LockFileEx; since the final-run lock is only a defense against
// caller misuse (a second concurrent Finish/Execute), a stub is acceptable
// here.
func lockFile(file *os.File) error {
	return nil
}

// unlockFile is the matching no-op.
func unlockFile(file *os.File) error {
	return nil
}
