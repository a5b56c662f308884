package netmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventType_Values(t *testing.T) {
	assert.Equal(t, EventType("LINK_CHANGED"), LinkChanged)
	assert.Equal(t, EventType("ADDR_CHANGED"), AddrChanged)
	assert.Equal(t, EventType("ROUTE_CHANGED"), RouteChanged)
}

func TestEventHandler_ReceivesEvent(t *testing.T) {
	var got []Event
	handler := EventHandler(func(ev Event) { got = append(got, ev) })

	handler(Event{Type: RouteChanged, InterfaceName: "wlan0", Index: 3})

	assert.Equal(t, []Event{{Type: RouteChanged, InterfaceName: "wlan0", Index: 3}}, got)
}
