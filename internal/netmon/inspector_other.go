//go:build !linux && !darwin

package netmon

// NewInspector falls back to interface scanning on platforms without a
// supported routing table API.
func NewInspector() Inspector {
	return NewScanInspector(nil)
}

func isWireless(string) bool { return false }
