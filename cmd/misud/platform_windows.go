//go:build windows

package main

import "os"

// Windows only supports os.Interrupt (Ctrl+C).
var shutdownSignals = []os.Signal{os.Interrupt}
