package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, showVersion, err := Parse(nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.False(t, showVersion)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 60110, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Internet)
	assert.False(t, cfg.WiFi)
	assert.False(t, cfg.Advertise)
	assert.Empty(t, cfg.Watch)
	assert.Empty(t, cfg.TargetsFile)
}

func TestParse_Flags(t *testing.T) {
	cfg, showVersion, err := Parse([]string{
		"-host", "0.0.0.0",
		"-port", "8081",
		"-log-level", "debug",
		"-config", "/etc/reachd/targets.yaml",
		"-internet=false",
		"-wifi",
		"-watch", "example.com, 192.0.2.1 ,,",
		"-advertise",
		"-version",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.True(t, showVersion)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/etc/reachd/targets.yaml", cfg.TargetsFile)
	assert.False(t, cfg.Internet)
	assert.True(t, cfg.WiFi)
	assert.True(t, cfg.Advertise)
	assert.Equal(t, []string{"example.com", "192.0.2.1"}, cfg.Watch)
	assert.Contains(t, cfg.String(), "Port: 8081")
}

func TestParse_BadFlag(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"-port", "not-a-number"}, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "-port")
}
