package main

import (
	"fmt"
	"os"

	"github.com/finswitch/finswitch/config"
	"github.com/finswitch/finswitch/core/registry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and schemas before deployment",
	Long: `Validate the finswitch configuration file and channel schemas.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Channel schemas parse and resolve
  - Every link references a known channel

Examples:
  finswitch validate
  finswitch validate --config /etc/finswitch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	// Load and validate config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	// Load and resolve channel schemas
	reg, err := registry.Load(cfg.Schemas.Path)
	if err != nil {
		fmt.Printf("  %s Channel schemas resolve\n", crossMark)
		return fmt.Errorf("schema error: %w", err)
	}
	fmt.Printf("  %s Channel schemas resolve (%d channels)\n", checkMark, reg.Len())

	// Every link must reference a known channel
	for _, lc := range cfg.Links {
		if _, ok := reg.Get(lc.Channel); !ok {
			fmt.Printf("  %s Link %s references channel %q\n", crossMark, lc.Name, lc.Channel)
			return fmt.Errorf("link %s: unknown channel %q", lc.Name, lc.Channel)
		}
		fmt.Printf("  %s Link %s -> %s (channel %s)\n",
			checkMark, lc.Name, lc.Primary.Host, lc.Channel)
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	fmt.Println()
	fmt.Println("Reloadable at runtime (SIGHUP or file change):")
	for _, f := range config.ReloadableFields() {
		fmt.Printf("  - %s\n", f)
	}
	fmt.Println("Requires restart:")
	for _, f := range config.NonReloadableFields() {
		fmt.Printf("  - %s\n", f)
	}
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
