package main

import (
	"github.com/spf13/cobra"

	"github.com/erp/migrator/internal/application/migrator"
)

var couponsCmd = &cobra.Command{
	Use:   "coupons",
	Short: "Migrate code discounts as coupons",
	Long: `Migrate code discounts from Shopify.

Basic and free shipping discounts are supported. Discounts with more than
one code produce one coupon per code. Rules without a local equivalent are
reported as advisories and the coupon is imported without them.`,
	Args: cobra.NoArgs,
	RunE: runCoupons,
}

var couponFlags *runFlags

func init() {
	couponFlags = addRunFlags(couponsCmd, migrator.DefaultCouponOptions(), flagsPaging|flagsFields)
	rootCmd.AddCommand(couponsCmd)
}

func runCoupons(cmd *cobra.Command, args []string) error {
	opts, err := couponFlags.options(cmd, rt.cfg.Migration.TestMode)
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

	imp, err := migrator.NewCouponImporter(engine, client, opts)
	if err != nil {
		return err
	}
	return rt.run(cmd.Context(), cmd.Name(), imp)
}
