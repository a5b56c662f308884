package cli

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	plist "howett.net/plist"

	"github.com/dmdmdm-nz/reachd/internal/watchmgr"
	"github.com/dmdmdm-nz/reachd/pkg/reachability"
)

var ErrUnknownFormat = errors.New("unknown targets file format")

// TargetsFile is the on-disk list of targets.
type TargetsFile struct {
	Internet bool          `plist:"internet" yaml:"internet"`
	WiFi     bool          `plist:"wifi" yaml:"wifi"`
	Targets  []TargetEntry `plist:"targets" yaml:"targets"`
}

// TargetEntry names a host or an address. Exactly one of Host and Address
// must be set; Name defaults to whichever is.
type TargetEntry struct {
	Name    string `plist:"name" yaml:"name"`
	Host    string `plist:"host" yaml:"host"`
	Address string `plist:"address" yaml:"address"`
}

// LoadTargetsFile reads a targets file, choosing plist or YAML by extension.
// ${VAR} and ${VAR:-default} in host and address values are expanded from
// the environment.
func LoadTargetsFile(path string) (*TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var tf TargetsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".plist":
		if _, err := plist.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse plist: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	for i := range tf.Targets {
		t := &tf.Targets[i]
		if t.Host, err = expandEnvVars(t.Host); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		if t.Address, err = expandEnvVars(t.Address); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
	}
	return &tf, nil
}

// Definition converts the entry into a watch definition.
func (e TargetEntry) Definition() (watchmgr.Definition, error) {
	host := strings.TrimSpace(e.Host)
	address := strings.TrimSpace(e.Address)

	switch {
	case host != "" && address != "":
		return watchmgr.Definition{}, fmt.Errorf("target %q: host and address are mutually exclusive", e.Name)
	case host != "":
		return watchmgr.Definition{Name: nameOr(e.Name, host), Kind: reachability.TargetHost, Host: host}, nil
	case address != "":
		ap, err := parseAddress(address)
		if err != nil {
			return watchmgr.Definition{}, fmt.Errorf("target %q: %w", e.Name, err)
		}
		return watchmgr.Definition{Name: nameOr(e.Name, address), Kind: reachability.TargetAddress, Address: ap}, nil
	default:
		return watchmgr.Definition{}, fmt.Errorf("target %q: host or address is required", e.Name)
	}
}

func nameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

// parseAddress accepts "ip", "ip:port" and "[ipv6]:port".
func parseAddress(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap, nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid address %q", s)
	}
	return netip.AddrPortFrom(ip, 0), nil
}

// Definitions merges the flags and the optional targets file into the list
// of targets to watch: internet, wifi, file targets, then -watch hosts.
func (c *Config) Definitions() ([]watchmgr.Definition, error) {
	internet, wifi := c.Internet, c.WiFi
	var entries []TargetEntry

	if c.TargetsFile != "" {
		tf, err := LoadTargetsFile(c.TargetsFile)
		if err != nil {
			return nil, err
		}
		internet = internet || tf.Internet
		wifi = wifi || tf.WiFi
		entries = append(entries, tf.Targets...)
	}
	for _, w := range c.Watch {
		if _, err := parseAddress(w); err == nil {
			entries = append(entries, TargetEntry{Address: w})
		} else {
			entries = append(entries, TargetEntry{Host: w})
		}
	}

	var defs []watchmgr.Definition
	if internet {
		defs = append(defs, watchmgr.InternetDefinition())
	}
	if wifi {
		defs = append(defs, watchmgr.LocalWiFiDefinition())
	}
	for _, e := range entries {
		def, err := e.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, errors.New("nothing to watch: enable -internet or -wifi, or add targets")
	}
	return defs, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		hasDefault := sub[2] != ""

		value, exists := os.LookupEnv(sub[1])
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", sub[1])
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
