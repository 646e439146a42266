package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erp/migrator/internal/application/migrator"
	"github.com/erp/migrator/internal/infrastructure/skio"
)

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Create subscriptions from a Skio export",
	Long: `Create subscriptions from the Skio subscriptions and orders exports.

Orders must be migrated first: every order listed in the orders export is
tagged with its subscription, the oldest order becomes the parent order and
the latest one supplies the items and addresses.

Examples:
  migrator subscriptions --subscriptions-file subscriptions.json --orders-file orders.json
  migrator subscriptions --exclude sub_123 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runSubscriptions,
}

var (
	subscriptionFlags *runFlags
	subscriptionsFile string
	skioOrdersFile    string
)

func init() {
	subscriptionFlags = addRunFlags(subscriptionsCmd, migrator.DefaultSubscriptionOptions(), 0)
	subscriptionsCmd.Flags().StringVar(&subscriptionsFile, "subscriptions-file", "", "Skio subscriptions export (default from skio.subscriptions_file)")
	subscriptionsCmd.Flags().StringVar(&skioOrdersFile, "orders-file", "", "Skio orders export (default from skio.orders_file)")
	rootCmd.AddCommand(subscriptionsCmd)
}

func runSubscriptions(cmd *cobra.Command, args []string) error {
	opts, err := subscriptionFlags.options(cmd, rt.cfg.Migration.TestMode)
	if err != nil {
		return err
	}

	subsPath := firstNonEmpty(subscriptionsFile, rt.cfg.Skio.SubscriptionsFile)
	ordersPath := firstNonEmpty(skioOrdersFile, rt.cfg.Skio.OrdersFile)
	if subsPath == "" || ordersPath == "" {
		return fmt.Errorf("both --subscriptions-file and --orders-file are required")
	}
	export, err := skio.NewExportFiles(subsPath, ordersPath, rt.log)
	if err != nil {
		return err
	}

	engine, err := rt.engine()
	if err != nil {
		return err
	}
	imp, err := migrator.NewSubscriptionImporter(engine, export, opts)
	if err != nil {
		return err
	}
	return rt.run(cmd.Context(), cmd.Name(), imp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
