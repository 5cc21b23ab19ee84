//go:build !windows

package mcp

import (
	"os"
	"syscall"
)

// shutdownSignals stop a run or a server gracefully.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
