package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"macropulse/internal/indicator"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [indicator]",
	Short: "Fetch one indicator and print it as JSON",
	Long: `Fetch a single indicator, or all of them, and print the result as JSON.

Example:
  go run ./cmd/macropulse fetch initial_claims
  go run ./cmd/macropulse fetch pmi_proxy --refresh
  go run ./cmd/macropulse fetch all`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

var (
	fetchRefresh bool
	fetchPeriods int
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "bypass the cache")
	fetchCmd.Flags().IntVar(&fetchPeriods, "periods", 0, "number of periods (0 uses the default)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	key := args[0]

	var payload interface{}
	if key == "all" {
		summary, err := d.service.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("fetch all indicators: %w", err)
		}
		if len(summary.Errors) > 0 {
			fmt.Fprintf(os.Stderr, "warning: %d indicator(s) failed\n", len(summary.Errors))
		}
		payload = summary
	} else {
		result, err := d.service.GetIndicator(ctx, key, indicator.Options{
			Periods:      fetchPeriods,
			ForceRefresh: fetchRefresh,
		})
		if err != nil {
			return fmt.Errorf("fetch %s: %w (known keys: %s)", key, err, strings.Join(indicator.Keys(), ", "))
		}
		payload = result
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
