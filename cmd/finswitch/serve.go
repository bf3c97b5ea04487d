package main

import (
	"fmt"
	"os"

	"github.com/finswitch/finswitch/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the switch",
	Long: `Start the finswitch front-end processor.

The switch will:
  - Load configuration from finswitch.yaml (or --config)
  - Load channel schemas from the configured path
  - Connect pooled TCP links to the configured authorization hosts
  - Send heartbeats on idle connections and fail over to backups
  - Expose metrics and link status on the operational HTTP listener

Environment variables override file configuration:
  FINSWITCH_SCHEMAS_PATH     - Channel schema file or directory
  FINSWITCH_LOG_LEVEL        - Log level: debug, info, warn, error
  FINSWITCH_LOG_FORMAT       - Log format: json or console
  FINSWITCH_METRICS_ENABLED  - Enable the operational listener
  FINSWITCH_METRICS_PORT     - Operational listener port (default: 9090)

Examples:
  finswitch serve
  finswitch serve --config /etc/finswitch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("Config file not found: %s\n", cfgFile)
		fmt.Println()
		fmt.Println("Create one or point --config at an existing file.")
		return fmt.Errorf("config file not found: %s", cfgFile)
	}

	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
