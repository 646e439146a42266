package main

import (
	"github.com/spf13/cobra"

	"github.com/erp/migrator/internal/application/migrator"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Migrate products, variations and images",
	Long: `Migrate products from Shopify.

Products with a single variant become simple products; products with more
variants become variable products whose variants are kept as variations.
Images are copied to the media bucket when storage is enabled, otherwise
the Shopify CDN URLs are kept.

--exclude takes remote product ids or SKU patterns, where * matches any
run of characters (case-insensitive).

Examples:
  migrator products --product-type single
  migrator products --handle classic-tee
  migrator products --status draft --exclude 'TEST-*'
  migrator products --remove-orphans`,
	Args: cobra.NoArgs,
	RunE: runProducts,
}

var productFlags *runFlags

func init() {
	productFlags = addRunFlags(productsCmd, migrator.DefaultProductOptions(), flagsPaging|flagsDates|flagsFields|flagsProducts)
	rootCmd.AddCommand(productsCmd)
}

func runProducts(cmd *cobra.Command, args []string) error {
	opts, err := productFlags.options(cmd, rt.cfg.Migration.TestMode)
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

	imp, err := migrator.NewProductImporter(engine, client, opts)
	if err != nil {
		return err
	}
	return rt.run(cmd.Context(), cmd.Name(), imp)
}
