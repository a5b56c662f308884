package cli

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmdmdm-nz/reachd/internal/watchmgr"
	"github.com/dmdmdm-nz/reachd/pkg/reachability"
)

const yamlTargets = `
internet: true
wifi: true
targets:
  - name: api
    host: api.example.com
  - name: gateway
    address: 192.168.1.1
  - host: ${REACHD_TEST_HOST:-fallback.example.com}
`

const plistTargets = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>internet</key>
	<false/>
	<key>wifi</key>
	<true/>
	<key>targets</key>
	<array>
		<dict>
			<key>name</key>
			<string>dns</string>
			<key>address</key>
			<string>[2001:db8::53]:53</string>
		</dict>
	</array>
</dict>
</plist>
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTargetsFile_YAML(t *testing.T) {
	tf, err := LoadTargetsFile(writeFile(t, "targets.yaml", yamlTargets))
	require.NoError(t, err)

	assert.True(t, tf.Internet)
	assert.True(t, tf.WiFi)
	assert.Equal(t, []TargetEntry{
		{Name: "api", Host: "api.example.com"},
		{Name: "gateway", Address: "192.168.1.1"},
		{Host: "fallback.example.com"},
	}, tf.Targets)
}

func TestLoadTargetsFile_YAMLExpandsEnv(t *testing.T) {
	t.Setenv("REACHD_TEST_HOST", "env.example.com")

	tf, err := LoadTargetsFile(writeFile(t, "targets.yml", yamlTargets))
	require.NoError(t, err)
	assert.Equal(t, "env.example.com", tf.Targets[2].Host)
}

func TestLoadTargetsFile_MissingEnv(t *testing.T) {
	_, err := LoadTargetsFile(writeFile(t, "targets.yaml", "targets:\n  - host: ${REACHD_TEST_UNSET_VAR}\n"))
	assert.ErrorContains(t, err, "REACHD_TEST_UNSET_VAR")
}

func TestLoadTargetsFile_Plist(t *testing.T) {
	tf, err := LoadTargetsFile(writeFile(t, "targets.plist", plistTargets))
	require.NoError(t, err)

	assert.False(t, tf.Internet)
	assert.True(t, tf.WiFi)
	assert.Equal(t, []TargetEntry{{Name: "dns", Address: "[2001:db8::53]:53"}}, tf.Targets)
}

func TestLoadTargetsFile_Errors(t *testing.T) {
	_, err := LoadTargetsFile(writeFile(t, "targets.json", "{}"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadTargetsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadTargetsFile(writeFile(t, "bad.yaml", "targets: [unterminated"))
	assert.ErrorContains(t, err, "YAML")
}

func TestTargetEntry_Definition(t *testing.T) {
	testCases := []struct {
		name     string
		entry    TargetEntry
		expected watchmgr.Definition
		wantErr  bool
	}{
		{
			name:     "Host",
			entry:    TargetEntry{Name: "api", Host: " api.example.com "},
			expected: watchmgr.Definition{Name: "api", Kind: reachability.TargetHost, Host: "api.example.com"},
		},
		{
			name:     "HostNameDefaults",
			entry:    TargetEntry{Host: "example.com"},
			expected: watchmgr.Definition{Name: "example.com", Kind: reachability.TargetHost, Host: "example.com"},
		},
		{
			name:     "Address",
			entry:    TargetEntry{Name: "gw", Address: "192.168.1.1"},
			expected: watchmgr.Definition{Name: "gw", Kind: reachability.TargetAddress, Address: netip.MustParseAddrPort("192.168.1.1:0")},
		},
		{
			name:     "AddressWithPort",
			entry:    TargetEntry{Address: "[2001:db8::1]:443"},
			expected: watchmgr.Definition{Name: "[2001:db8::1]:443", Kind: reachability.TargetAddress, Address: netip.MustParseAddrPort("[2001:db8::1]:443")},
		},
		{name: "Both", entry: TargetEntry{Host: "a", Address: "192.0.2.1"}, wantErr: true},
		{name: "Neither", entry: TargetEntry{Name: "empty"}, wantErr: true},
		{name: "BadAddress", entry: TargetEntry{Address: "999.1.1.1"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := tc.entry.Definition()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, def)
		})
	}
}

func TestConfig_Definitions(t *testing.T) {
	path := writeFile(t, "targets.yaml", "targets:\n  - name: api\n    host: api.example.com\n")
	cfg := &Config{
		Internet:    true,
		TargetsFile: path,
		Watch:       []string{"10.0.0.1", "example.org"},
	}

	defs, err := cfg.Definitions()
	require.NoError(t, err)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"internet", "api", "10.0.0.1", "example.org"}, names)
	assert.Equal(t, reachability.TargetAddress, defs[2].Kind)
	assert.Equal(t, reachability.TargetHost, defs[3].Kind)
}

func TestConfig_DefinitionsFileEnablesWiFi(t *testing.T) {
	path := writeFile(t, "targets.yaml", "wifi: true\n")
	defs, err := (&Config{TargetsFile: path}).Definitions()
	require.NoError(t, err)
	assert.Equal(t, []watchmgr.Definition{watchmgr.LocalWiFiDefinition()}, defs)
}

func TestConfig_DefinitionsEmpty(t *testing.T) {
	_, err := (&Config{}).Definitions()
	assert.Error(t, err)
}
