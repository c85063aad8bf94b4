package main

import (
	"os"
	"time"

	"github.com/logbook/backend/internal/client"
	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:3001"

type rootOptions struct {
	serverURL string
	timeout   time.Duration

	// newClient is replaced in tests
	newClient func(baseURL string, timeout time.Duration) (*client.Client, error)
}

func (o *rootOptions) client() (*client.Client, error) {
	return o.newClient(o.serverURL, o.timeout)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithOptions(&rootOptions{newClient: client.New})
}

func newRootCmdWithOptions(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "logbook",
		Short:         "Ingest, store and query structured log entries",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverURL := os.Getenv("LOGBOOK_SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", serverURL, "logbook server URL (env LOGBOOK_SERVER_URL)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "request timeout")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts))
	rootCmd.AddCommand(newHealthCmd(opts))

	return rootCmd
}
