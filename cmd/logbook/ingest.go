package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Submit one JSON log entry",
		Long:  "Submit one JSON log entry read from --file, or from stdin when the file is \"-\".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}

			stored, err := c.IngestRaw(cmd.Context(), body)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "stored %s entry for %s at %s\n", stored.Level, stored.ResourceID, stored.Timestamp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file holding the entry, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}
