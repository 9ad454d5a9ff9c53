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

var rootCmd = &cobra.Command{
	Use:   "cantina",
	Short: "Cantina - internal consumption budget engine",
	Long: `Cantina tracks internal consumption at points of sale against
periodic budgets.

It provides:
  - Budget configurations scoped to org units or external payers
  - Charge validation against the remaining balance of the current period
  - An append-only audit trail with sequential references
  - Self-healing receivable account routing across tenant companies
  - A per-field change log for every configuration edit`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
