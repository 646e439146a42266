// Command migrator copies a Shopify store into the local entity store.
// Every run is idempotent: entities already migrated are updated in place,
// so an interrupted run is resumed by starting it again (or with --next).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string

	// rt is set up by the root command before any subcommand runs
	rt *runtime
)

var rootCmd = &cobra.Command{
	Use:   "migrator",
	Short: "Migrate orders, products, coupons and subscriptions from Shopify",
	Long: `Migrate a Shopify store into the local entity store.

Runs can be repeated safely. Entities are matched by their original remote
id first, then by a secondary key (order number, SKU, coupon code), and are
updated in place rather than duplicated.

Examples:
  migrator orders --after 2024-01-01 --limit 500
  migrator orders --next '<cursor printed by the last run>'
  migrator products --product-type variable --remove-orphans
  migrator order-tags --ids 4501,4502
  migrator subscriptions --subscriptions-file subs.json --orders-file orders.json
  migrator payment-methods --file stripe_pan_migration.csv
  migrator db up`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		rt, err = newRuntime(cmd.Context(), configPath)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return nil
		}
		return rt.Close(context.WithoutCancel(cmd.Context()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.toml (default: ./config.toml or /etc/migrator/config.toml)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && rt != nil {
		// PersistentPostRunE is skipped when the command fails
		_ = rt.Close(context.Background())
	}
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
