package reachability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "not-reachable", NotReachable.String())
	assert.Equal(t, "reachable-via-wifi", ReachableViaWiFi.String())
	assert.Equal(t, "reachable-via-wwan", ReachableViaWWAN.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{NotReachable, ReachableViaWiFi, ReachableViaWWAN} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var parsed Status
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, s, parsed)
	}

	_, err := Status(42).MarshalText()
	assert.Error(t, err)

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("sideways")))
}

func TestStatus_Reachable(t *testing.T) {
	assert.False(t, NotReachable.Reachable())
	assert.True(t, ReachableViaWiFi.Reachable())
	assert.True(t, ReachableViaWWAN.Reachable())
}

func TestFlags_String(t *testing.T) {
	assert.Equal(t, "---------", Flags(0).String())
	assert.Equal(t, "-------R-", FlagReachable.String())
	assert.Equal(t, "W-----cR-", (FlagIsWWAN | FlagConnectionRequired | FlagReachable).String())
	assert.Equal(t, "-dl----R-", (FlagIsDirect | FlagIsLocalAddress | FlagReachable).String())
}

func TestStatusForFlags(t *testing.T) {
	testCases := []struct {
		name     string
		flags    Flags
		expected Status
	}{
		{name: "Nothing", flags: 0, expected: NotReachable},
		{name: "WWANButUnreachable", flags: FlagIsWWAN, expected: NotReachable},
		{name: "Reachable", flags: FlagReachable, expected: ReachableViaWiFi},
		{name: "Direct", flags: FlagReachable | FlagIsDirect, expected: ReachableViaWiFi},
		{name: "ConnectionRequired", flags: FlagReachable | FlagConnectionRequired, expected: NotReachable},
		{
			name:     "OnTraffic",
			flags:    FlagReachable | FlagConnectionRequired | FlagConnectionOnTraffic,
			expected: ReachableViaWiFi,
		},
		{
			name:     "OnDemand",
			flags:    FlagReachable | FlagConnectionRequired | FlagConnectionOnDemand,
			expected: ReachableViaWiFi,
		},
		{
			name:     "OnDemandNeedsUser",
			flags:    FlagReachable | FlagConnectionRequired | FlagConnectionOnDemand | FlagInterventionRequired,
			expected: NotReachable,
		},
		{name: "WWAN", flags: FlagReachable | FlagIsWWAN, expected: ReachableViaWWAN},
		{
			name:     "WWANPendingConnection",
			flags:    FlagReachable | FlagIsWWAN | FlagConnectionRequired,
			expected: ReachableViaWWAN,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusForFlags(tc.flags))
		})
	}
}

func TestLocalWiFiStatusForFlags(t *testing.T) {
	assert.Equal(t, NotReachable, LocalWiFiStatusForFlags(0))
	assert.Equal(t, NotReachable, LocalWiFiStatusForFlags(FlagReachable))
	assert.Equal(t, NotReachable, LocalWiFiStatusForFlags(FlagIsDirect))
	assert.Equal(t, ReachableViaWiFi, LocalWiFiStatusForFlags(FlagReachable|FlagIsDirect))
}
