package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/reachd/internal/api"
	"github.com/dmdmdm-nz/reachd/pkg/version"
)

var errNotFound = errors.New("not found")

type client struct {
	base string
	http *http.Client
}

func newClient(cmd *cobra.Command) *client {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return &client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reachd not reachable at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(v)
	case http.StatusNotFound:
		var e api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%w: %s", errNotFound, e.Error)
		}
		return fmt.Errorf("%w: %s", errNotFound, path)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
}

func (c *client) version(ctx context.Context) (api.VersionInfo, error) {
	var info api.VersionInfo
	err := c.getJSON(ctx, "/version", &info)
	return info, err
}

// checkVersion warns when the daemon's major version differs from ours.
// Development builds are never compared.
func (c *client) checkVersion(ctx context.Context, warn io.Writer) {
	info, err := c.version(ctx)
	if err != nil {
		return
	}
	if msg := versionMismatch(version.Version, info.Version); msg != "" {
		fmt.Fprintln(warn, "warning:", msg)
	}
}

func versionMismatch(local, remote string) string {
	lv, err := semver.NewVersion(local)
	if err != nil {
		return ""
	}
	rv, err := semver.NewVersion(remote)
	if err != nil {
		return ""
	}
	if lv.Major() != rv.Major() {
		return fmt.Sprintf("reachctl %s may not understand reachd %s", lv, rv)
	}
	return ""
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

func formatAge(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return now.Sub(t).Truncate(time.Second).String()
}
