package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erp/migrator/internal/application/migrator"
	csvimport "github.com/erp/migrator/internal/infrastructure/import"
)

var paymentMethodsCmd = &cobra.Command{
	Use:   "payment-methods",
	Short: "Point orders and subscriptions at migrated Stripe payment methods",
	Long: `Apply a Stripe PAN migration file.

The file is the CSV Stripe delivers after copying cards between accounts,
with the columns customer_id_old, source_id_old, customer_id_new and
source_id_new. Customers and saved tokens learn their old ids, then every
shopify_payments order and subscription paid with a migrated card is
switched to the matching local token.

Example:
  migrator payment-methods --file stripe_pan_migration.csv`,
	Args: cobra.NoArgs,
	RunE: runPaymentMethods,
}

var (
	paymentMethodFlags *runFlags
	paymentMappingFile string
)

func init() {
	paymentMethodFlags = addRunFlags(paymentMethodsCmd, migrator.DefaultPaymentMethodOptions(), 0)
	paymentMethodsCmd.Flags().StringVarP(&paymentMappingFile, "file", "f", "", "Stripe PAN migration CSV")
	_ = paymentMethodsCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(paymentMethodsCmd)
}

func runPaymentMethods(cmd *cobra.Command, args []string) error {
	opts, err := paymentMethodFlags.options(cmd, rt.cfg.Migration.TestMode)
	if err != nil {
		return err
	}
	if paymentMappingFile == "" {
		return fmt.Errorf("--file is required")
	}

	engine, err := rt.engine()
	if err != nil {
		return err
	}
	imp, err := migrator.NewPaymentMethodImporter(engine, csvimport.NewPaymentMappingFile(paymentMappingFile, rt.log), opts)
	if err != nil {
		return err
	}
	return rt.run(cmd.Context(), cmd.Name(), imp)
}
