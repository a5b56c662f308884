package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/reachd/internal/watchmgr"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [name]",
		Short: "Stream reachability changes",
		Long: `Print the state of every target, then one line per change, until
interrupted.

Example:
  reachctl watch
  reachctl watch api`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
	return cmd
}

func eventsURL(base, name string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/ws/events")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if name != "" {
		u.RawQuery = url.Values{"name": {name}}.Encode()
	}
	return u.String(), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newClient(cmd)
	vctx, cancel := requestContext(cmd)
	c.checkVersion(vctx, cmd.ErrOrStderr())
	cancel()

	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	wsURL, err := eventsURL(c.base, name)
	if err != nil {
		return err
	}

	dialCtx, cancel := requestContext(cmd)
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	out := cmd.OutOrStdout()
	for {
		_, b, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusGoingAway {
				fmt.Fprintln(cmd.ErrOrStderr(), "reachd closed the stream")
				return nil
			}
			return err
		}
		var s watchmgr.TargetState
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fmt.Fprintln(out, formatEvent(s))
	}
}

func formatEvent(s watchmgr.TargetState) string {
	line := fmt.Sprintf("%s %s %s", s.Updated.Format("15:04:05.000"), s.Name, s.Status)
	if s.Status != s.LastStatus {
		line += fmt.Sprintf(" (was %s)", s.LastStatus)
	}
	if s.ConnectionRequired {
		line += " connection-required"
	}
	return line + " [" + s.Flags + "]"
}
