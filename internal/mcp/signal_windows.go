//go:build windows

package mcp

import "os"

// shutdownSignals stop a run or a server gracefully. SIGTERM does not
// exist on Windows.
var shutdownSignals = []os.Signal{os.Interrupt}
