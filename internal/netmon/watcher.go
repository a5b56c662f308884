package netmon

import "context"

// Watcher delivers network change events using platform-specific mechanisms
// (netlink on Linux, route sockets on macOS, interface polling elsewhere).
type Watcher interface {
	// Start subscribes to change events and returns once the subscription is
	// in place. The callback is invoked from a watcher-owned goroutine, one
	// event at a time, until ctx is cancelled.
	Start(ctx context.Context, callback EventHandler) error
}
