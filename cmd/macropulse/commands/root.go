package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "macropulse",
	Short: "Macro economic indicator dashboard backend",
	Long: `MacroPulse serves US macro economic indicators for the dashboard frontend.

It fetches series from FRED and Yahoo Finance, derives trend signals,
and exposes them over REST and WebSocket.

Examples:
  go run ./cmd/macropulse api
  go run ./cmd/macropulse fetch initial_claims
  go run ./cmd/macropulse cache stats`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
