package daemon

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// LifecycleManager guards a single daemon instance with a lock file and
// advertises it through a PID file.
type LifecycleManager struct {
	lockFile   *LockFile
	pidFile    *PIDFile
	socketPath string
}

func NewLifecycleManager(lockPath, pidPath, socketPath string) *LifecycleManager {
	return &LifecycleManager{
		lockFile:   NewLockFile(lockPath),
		pidFile:    NewPIDFile(pidPath),
		socketPath: socketPath,
	}
}

// AcquireInstanceLock fails with ErrLockHeld while another daemon runs.
// A lock that is free but leaves a responsive socket behind means the
// other process is shutting down; that is reported the same way.
func (lm *LifecycleManager) AcquireInstanceLock() error {
	if err := lm.lockFile.Acquire(); err != nil {
		if errors.Is(err, ErrLockHeld) {
			return err
		}
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if lm.isSocketResponsive() {
		lm.lockFile.Release()
		return ErrLockHeld
	}
	return nil
}

func (lm *LifecycleManager) isSocketResponsive() bool {
	conn, err := net.DialTimeout("unix", lm.socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (lm *LifecycleManager) RegisterRunningDaemon() error {
	return lm.pidFile.Write()
}

func (lm *LifecycleManager) Cleanup() {
	lm.pidFile.Remove()
	lm.lockFile.Release()
}

func (lm *LifecycleManager) LockFile() *LockFile {
	return lm.lockFile
}

func (lm *LifecycleManager) PIDFile() *PIDFile {
	return lm.pidFile
}
