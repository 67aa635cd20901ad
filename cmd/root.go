// Package cmd wires the cobra command tree for the fradiavolo backend.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgPath string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fradiavolo-backend",
	Short: "Invoice and delivery tracking backend",
	Long: `Backend for the multi-store invoice and delivery tracking system:
HTTP API for delivery confirmation, discrepancy reports and stock transfers,
plus a background worker refreshing the directory caches.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "directory containing config.yaml")
}
