package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "finswitch",
	Short: "ISO 8583 front-end processor with channel schemas and link management",
	Long: `Finswitch is a front-end processor for ISO 8583 authorization traffic.

It encodes and decodes messages under per-channel field schemas, keeps
pooled TCP links to authorization hosts alive with heartbeats and
failover, and correlates responses to requests by trace number.

Quick start:
  finswitch validate   # Validate configuration and schemas
  finswitch serve      # Start the switch

Management:
  finswitch channels   # Inspect channel schemas
  finswitch version    # Print version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "finswitch.yaml", "config file path")
}
