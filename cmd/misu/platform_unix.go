//go:build unix

package main

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const exeSuffix = ""

var shutdownSignals = []os.Signal{unix.SIGINT, unix.SIGTERM}

// detach puts the daemon in its own session so it outlives the terminal.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// killDaemon sends SIGTERM and waits up to five seconds before SIGKILL.
func killDaemon(pid int) {
	_ = unix.Kill(pid, unix.SIGTERM)

	for i := 0; i < 50; i++ {
		if unix.Kill(pid, 0) != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = unix.Kill(pid, unix.SIGKILL)
}
