package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "kanban-sync",
		Short: "Offline-first kanban board sync service",
		Long: `kanban-sync keeps a local kanban board in step with a hosted backend.

Local edits apply immediately and are written through to the backend,
or queued while it is unreachable and replayed on reconnect. Changes
made by other clients arrive over a realtime feed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// флаг важнее переменной окружения
			if configPath != "" {
				return os.Setenv("CONFIG_FILE", configPath)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(), relayCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the board API with sync, realtime and connectivity monitoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward Postgres change notifications to NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			return relay()
		},
	}
}
