package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/reachd/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version of this reachctl binary and, if it answers, of the daemon.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reachctl %s\n", version.Version)
			fmt.Fprintf(out, "  commit: %s\n", version.CommitHash)
			fmt.Fprintf(out, "  built:  %s\n", version.BuildTime)

			ctx, cancel := requestContext(cmd)
			defer cancel()
			c := newClient(cmd)
			info, err := c.version(ctx)
			if err != nil {
				fmt.Fprintf(out, "reachd unavailable: %v\n", err)
				return
			}
			fmt.Fprintf(out, "reachd %s (commit: %s)\n", info.Version, info.CommitHash)
			if msg := versionMismatch(version.Version, info.Version); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", msg)
			}
		},
	}
}
