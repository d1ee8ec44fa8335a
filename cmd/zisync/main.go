// Command zisync is the peer-to-peer file-synchronization daemon and
// control CLI: it manages syncs, trees and favorites, runs reconciliation
// passes against paired devices, and can serve the wire-protocol data
// plane for inbound pushes and pulls.
package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
