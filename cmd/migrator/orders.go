package main

import (
	"github.com/spf13/cobra"

	"github.com/erp/migrator/internal/application/migrator"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Migrate orders with their items, refunds and customers",
	Long: `Migrate orders from Shopify.

Each order brings its line items, tax lines, shipping lines, coupon lines,
refunds, shipment tracking and payment data. Customers are matched by email
and created when missing.

In test mode (the default unless migration.test_mode is false) phone numbers
and email addresses are masked so the local store cannot contact customers.

Examples:
  migrator orders --after 2024-01-01 --before 2024-02-01
  migrator orders --ids 4501,4502 --no-create
  migrator orders --fields status,dates
  migrator orders --mode live --remove-orphans`,
	Args: cobra.NoArgs,
	RunE: runOrders,
}

var orderTagsCmd = &cobra.Command{
	Use:   "order-tags",
	Short: "Copy order tags onto orders that were already migrated",
	Long: `Update only the tags of orders that already exist locally.

Orders are matched by their original id or their order number; orders that
were never migrated are skipped.`,
	Args: cobra.NoArgs,
	RunE: runOrderTags,
}

var (
	orderFlags    *runFlags
	orderTagFlags *runFlags
)

func init() {
	orderFlags = addRunFlags(ordersCmd, migrator.DefaultOrderOptions(), flagsPaging|flagsDates|flagsFields|flagsOrders)
	orderTagFlags = addRunFlags(orderTagsCmd, migrator.DefaultOrderTagOptions(), flagsPaging|flagsDates)

	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(orderTagsCmd)
}

func runOrders(cmd *cobra.Command, args []string) error {
	opts, err := orderFlags.options(cmd, rt.cfg.Migration.TestMode)
	if err != nil {
		return err
	}
	client, err := rt.shopify()
	if err != nil {
		return err
	}
	engine, err := rt.engine()
	if err != nil {
		return err
	}

	imp, err := migrator.NewOrderImporter(engine, client, opts)
	if err != nil {
		return err
	}
	return rt.run(cmd.Context(), cmd.Name(), imp)
}

func runOrderTags(cmd *cobra.Command, args []string) error {
	opts, err := orderTagFlags.options(cmd, rt.cfg.Migration.TestMode)
	if err != nil {
		return err
	}
	client, err := rt.shopify()
	if err != nil {
		return err
	}
	engine, err := rt.engine()
	if err != nil {
		return err
	}

	imp, err := migrator.NewOrderTagImporter(engine, client, opts)
	if err != nil {
		return err
	}
	return rt.run(cmd.Context(), cmd.Name(), imp)
}
