package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			status, err := c.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			started := now.Add(-status.UptimeDuration())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:  %s\n", status.Status)
			if status.Version != "" {
				fmt.Fprintf(out, "version: %s\n", status.Version)
			}
			fmt.Fprintf(out, "started: %s\n", humanize.RelTime(started, now, "ago", "from now"))
			return nil
		},
	}
}
