package daemon

import (
	"errors"
	"fmt"
	"os"
)

// ErrLockHeld means another misud owns the instance lock.
var ErrLockHeld = errors.New("daemon already running (lock held)")

// LockFile is an advisory exclusive lock that lives as long as the daemon.
type LockFile struct {
	path string
	file *os.File
}

func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

func (l *LockFile) Acquire() error {
	if l.file != nil {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := l.platformLock(f); err != nil {
		f.Close()
		return err
	}

	l.file = f
	return nil
}

// Release unlocks and removes the lock file.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	l.platformUnlock(l.file)

	err := l.file.Close()
	l.file = nil

	os.Remove(l.path)

	return err
}

func (l *LockFile) IsLocked() bool {
	return l.file != nil
}

func (l *LockFile) Path() string {
	return l.path
}
