package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/logbook/backend/internal/models"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		filter  models.Filter
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			entries, err := c.FetchLogs(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			renderEntries(out, entries, verbose)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Level, "level", "", "exact level (error, warn, info, debug)")
	flags.StringVar(&filter.Message, "message", "", "case-insensitive substring of the message")
	flags.StringVar(&filter.ResourceID, "resource-id", "", "exact resource id")
	flags.StringVar(&filter.TraceID, "trace-id", "", "exact trace id")
	flags.StringVar(&filter.SpanID, "span-id", "", "exact span id")
	flags.StringVar(&filter.Commit, "commit", "", "exact commit")
	flags.StringVar(&filter.TimestampStart, "from", "", "inclusive lower time bound (ISO 8601)")
	flags.StringVar(&filter.TimestampEnd, "to", "", "inclusive upper time bound (ISO 8601)")
	flags.BoolVar(&asJSON, "json", false, "print the raw JSON array")
	flags.BoolVarP(&verbose, "verbose", "v", false, "include trace, span, commit and metadata columns")

	return cmd
}

func renderEntries(w io.Writer, entries []models.LogEntry, verbose bool) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	header := []string{"timestamp", "level", "resource", "message"}
	if verbose {
		header = append(header, "trace", "span", "commit", "metadata")
	}
	table.SetHeader(header)

	for _, e := range entries {
		row := []string{e.Timestamp, string(e.Level), e.ResourceID, e.Message}
		if verbose {
			row = append(row, e.TraceID, e.SpanID, e.Commit, formatMetadata(e.Metadata))
		}
		table.Append(row)
	}

	footer := make([]string, len(header))
	footer[len(footer)-1] = fmt.Sprintf("%d entries", len(entries))
	table.SetFooter(footer)
	table.Render()
}

func formatMetadata(metadata map[string]any) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(metadata[k])
		if err != nil {
			v = []byte(fmt.Sprint(metadata[k]))
		}
		parts = append(parts, k+"="+string(v))
	}
	return strings.Join(parts, " ")
}
