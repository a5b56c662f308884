package netmon

type EventType string

const (
	LinkChanged  EventType = "LINK_CHANGED"
	AddrChanged  EventType = "ADDR_CHANGED"
	RouteChanged EventType = "ROUTE_CHANGED"
)

// Event reports that something on the host's network path changed. Index is
// zero and InterfaceName empty when the platform did not say which interface.
type Event struct {
	Type          EventType
	InterfaceName string
	Index         int
}

type EventHandler func(event Event)
