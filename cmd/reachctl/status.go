package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/reachd/internal/watchmgr"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show target reachability",
		Long: `Show the current reachability of every watched target, or of one
target by name.

Example:
  reachctl status
  reachctl status internet --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}
	cmd.Flags().Bool("json", false, "print raw JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	c := newClient(cmd)
	c.checkVersion(ctx, cmd.ErrOrStderr())

	var states []watchmgr.TargetState
	if len(args) == 1 {
		var state watchmgr.TargetState
		if err := c.getJSON(ctx, "/targets/"+url.PathEscape(args[0]), &state); err != nil {
			return err
		}
		states = append(states, state)
	} else if err := c.getJSON(ctx, "/targets", &states); err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if len(args) == 1 {
			return enc.Encode(states[0])
		}
		return enc.Encode(states)
	}
	return printStates(cmd.OutOrStdout(), states, time.Now())
}

func printStates(out io.Writer, states []watchmgr.TargetState, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTARGET\tSTATUS\tLAST\tCONN-REQ\tFLAGS\tSINCE")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			s.Name, s.Target, s.Status, s.LastStatus, s.ConnectionRequired, s.Flags, formatAge(now, s.Since))
	}
	return tw.Flush()
}
