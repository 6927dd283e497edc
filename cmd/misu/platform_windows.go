//go:build windows

package main

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

const exeSuffix = ".exe"

// Windows only delivers os.Interrupt (Ctrl+C).
var shutdownSignals = []os.Signal{os.Interrupt}

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.DETACHED_PROCESS}
}

// killDaemon terminates the daemon and waits up to five seconds for the
// process to go away.
func killDaemon(pid int) {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 0); err != nil {
		return
	}
	_, _ = windows.WaitForSingleObject(h, uint32((5 * time.Second).Milliseconds()))
}
