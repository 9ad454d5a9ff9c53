package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alameda-hq/cantina/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply defaults and environment
overrides, and report whether the result is valid.

Examples:
  cantina validate
  cantina validate --config /etc/cantina/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Configuration valid\n")
		fmt.Printf("  config db:  %s\n", cfg.Storage.ConfigPath)
		fmt.Printf("  ledger db:  %s\n", cfg.Storage.LedgerPath)
		fmt.Printf("  timezone:   %s\n", cfg.Budget.Timezone)
		fmt.Printf("  sweep:      %s\n", sweepDescription(cfg.Budget.SweepSchedule))
		fmt.Printf("  metrics:    %s\n", cfg.Server.MetricsListenAddress)
		return nil
	},
}

func sweepDescription(schedule string) string {
	if schedule == "" {
		return "disabled"
	}
	return schedule
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
