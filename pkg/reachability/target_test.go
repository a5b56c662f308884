package reachability

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostTarget(t *testing.T) {
	target, err := hostTarget("  example.com ")
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: TargetHost, Host: "example.com"}, target)
	assert.Equal(t, "host:example.com", target.String())

	_, err = hostTarget(" ")
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestAddressTarget(t *testing.T) {
	target, err := addressTarget(netip.MustParseAddrPort("[::ffff:10.0.0.1]:443"))
	require.NoError(t, err)
	assert.Equal(t, TargetAddress, target.Kind)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.1:443"), target.Addr)
	assert.Equal(t, "address:10.0.0.1", target.String())

	_, err = addressTarget(netip.AddrPort{})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestSentinelTargets(t *testing.T) {
	internet := internetTarget()
	assert.Equal(t, TargetInternet, internet.Kind)
	assert.True(t, internet.Addr.Addr().IsUnspecified())
	assert.Equal(t, "internet", internet.String())

	wifi := localWiFiTarget()
	assert.Equal(t, TargetLocalWiFi, wifi.Kind)
	assert.True(t, wifi.Addr.Addr().IsLinkLocalUnicast())
	assert.Equal(t, "local-wifi", wifi.String())
}

func TestTargetKind_String(t *testing.T) {
	assert.Equal(t, "host", TargetHost.String())
	assert.Equal(t, "address", TargetAddress.String())
	assert.Equal(t, "TargetKind(7)", TargetKind(7).String())
}
