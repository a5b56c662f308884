//go:build !linux && !darwin

package netmon

import "time"

const defaultPollInterval = 5 * time.Second

// NewWatcher falls back to polling the interface list on platforms without a
// supported change notification API.
func NewWatcher() Watcher {
	return NewPollWatcher(defaultPollInterval, nil)
}
