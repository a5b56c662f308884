package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmdmdm-nz/reachd/internal/discovery"
	"github.com/dmdmdm-nz/reachd/pkg/version"
)

// Config holds the application configuration from CLI flags
type Config struct {
	Port        int
	Host        string
	LogLevel    string
	TargetsFile string
	Internet    bool
	WiFi        bool
	Watch       []string
	Advertise   bool
}

// ParseFlags parses command line arguments and returns a Config
func ParseFlags() *Config {
	cfg, showVersion, err := Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	if showVersion {
		fmt.Printf("reachd version %s (commit: %s, built at: %s)\n",
			version.Version,
			version.CommitHash,
			version.BuildTime)
		os.Exit(0)
	}

	return cfg
}

// Parse parses args without touching the process flag set. Usage and errors
// are written to output.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("reachd", flag.ContinueOnError)
	fs.SetOutput(output)

	var watch string
	fs.IntVar(&cfg.Port, "port", 60110, "Port to listen on")
	fs.StringVar(&cfg.Host, "host", "127.0.0.1", "Host to bind to")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&cfg.TargetsFile, "config", "", "Targets file (.plist, .yaml or .yml)")
	fs.BoolVar(&cfg.Internet, "internet", true, "Watch the default route")
	fs.BoolVar(&cfg.WiFi, "wifi", false, "Watch the local WiFi link")
	fs.StringVar(&watch, "watch", "", "Comma separated host names or addresses to watch")
	fs.BoolVar(&cfg.Advertise, "advertise", false, "Advertise the API over mDNS as "+discovery.ServiceType)
	showVersion := fs.Bool("version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	for _, host := range strings.Split(watch, ",") {
		if host = strings.TrimSpace(host); host != "" {
			cfg.Watch = append(cfg.Watch, host)
		}
	}
	return cfg, *showVersion, nil
}

// String returns a string representation of the Config
func (c *Config) String() string {
	return fmt.Sprintf("Host: %s, Port: %d, LogLevel: %s, TargetsFile: %q, Internet: %t, WiFi: %t, Watch: %v, Advertise: %t",
		c.Host, c.Port, c.LogLevel, c.TargetsFile, c.Internet, c.WiFi, c.Watch, c.Advertise)
}
