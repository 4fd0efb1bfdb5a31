// Command nexus runs the conversational agent gateway: an HTTP/SSE/
// WebSocket front end over an orchestrator loop, backed by a hybrid
// session store and an optional checkpoint store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nexus",
		Short: "Conversational agent gateway",
	}
	root.AddCommand(buildServeCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/SSE/WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(context.Background(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "nexus.yaml", "path to the gateway's configuration file")
	return cmd
}
