// Package main is the reachctl command line client for reachd.
//
// Usage:
//
//	reachctl status             # Show every watched target
//	reachctl status internet    # Show one target
//	reachctl watch              # Stream changes as they happen
//	reachctl discover           # Find daemons on the local network
//	reachctl version            # Show client and daemon versions
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultAddr    = "http://127.0.0.1:60110"
	defaultTimeout = 5 * time.Second
)

// newRootCmd builds the command tree. It just displays help when called
// without a subcommand.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reachctl",
		Short: "Query a reachd daemon",
		Long: `reachctl talks to the HTTP API of a reachd daemon.

reachd watches the reachability of hosts, addresses, the default route and
the local WiFi link, and publishes each target's status. reachctl shows
those statuses, streams changes, and finds daemons advertised over mDNS.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("addr", "a", defaultAddr, "base URL of the reachd API")
	root.PersistentFlags().Duration("timeout", defaultTimeout, "timeout for API requests and discovery")

	root.AddCommand(
		newStatusCmd(),
		newWatchCmd(),
		newDiscoverCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}
