package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/reachd/internal/discovery"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Find reachd daemons over mDNS",
		Long: `Browse the local network for reachd daemons started with -advertise
and list their API addresses. Browsing lasts for --timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			daemons, err := discovery.Discover(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			if len(daemons) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no daemons found")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tURL\tVERSION")
			for _, d := range daemons {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Instance, d.URL(), d.Version)
			}
			return tw.Flush()
		},
	}
}
