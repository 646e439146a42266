package migrator

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// CouponImporter copies Shopify code discounts into local coupons. Every
// code of a discount becomes its own coupon.
type CouponImporter struct {
	*session
	source migration.CouponSource
}

var _ Handler[migration.RemoteCoupon] = (*CouponImporter)(nil)

// NewCouponImporter creates a coupon importer for one run
func NewCouponImporter(e *Engine, source migration.CouponSource, opts RunOptions) (*CouponImporter, error) {
	s, err := e.newSession(opts, migration.CouponFields)
	if err != nil {
		return nil, err
	}
	return &CouponImporter{session: s, source: source}, nil
}

// Run imports every discount of the listing
func (imp *CouponImporter) Run(ctx context.Context) (*RunResult, error) {
	return Run(ctx, imp.engine, imp.source.ListCoupons, imp, imp.opts)
}

// Kind implements Handler
func (imp *CouponImporter) Kind() migration.EntityKind {
	return migration.KindCoupon
}

// RemoteID implements Handler
func (imp *CouponImporter) RemoteID(c migration.RemoteCoupon) string {
	return c.ID
}

// Process creates or updates the coupon of the primary code, then one
// coupon per additional code
func (imp *CouponImporter) Process(ctx context.Context, c migration.RemoteCoupon) (Outcome, error) {
	log := logger.L(ctx)
	if imp.opts.Excluded(c.ID) {
		log.Info("coupon excluded, skipping")
		return OutcomeSkipped, nil
	}
	if !c.Supported() {
		log.Advisory(migration.Warning("discount type %s is not supported, skipping %q", c.Type, c.Title))
		return OutcomeSkipped, nil
	}

	terms, advisories := migration.TranslateCoupon(&c, imp.now())
	productIDs, err := imp.restrictedProducts(ctx, terms.ProductIDs)
	if err != nil {
		return OutcomeSkipped, err
	}

	code := normalizeCouponCode(c.PrimaryCode())
	outcome, err := imp.importCode(ctx, &c, terms, productIDs, advisories, code, c.AsyncUsageCount, true)
	if err != nil {
		return outcome, err
	}

	for _, child := range c.ChildCodes() {
		childCode := normalizeCouponCode(child.Code)
		if childCode == "" {
			continue
		}
		if _, err := imp.importCode(ctx, &c, terms, productIDs, nil, childCode, child.AsyncUsageCount, false); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// normalizeCouponCode trims and lowercases a code; codes are matched
// case-insensitively
func normalizeCouponCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func (imp *CouponImporter) importCode(ctx context.Context, c *migration.RemoteCoupon, terms migration.CouponTerms, productIDs []string,
	advisories []migration.Advisory, code string, usage int, primary bool) (Outcome, error) {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("code", code)))

	coupon, outcome, err := imp.claim(ctx, migration.KindCoupon,
		ByMeta(migration.MetaOriginalCouponID, c.ID, migration.KindCoupon).When(primary),
		ByField(migration.FieldCode, code, migration.KindCoupon),
	)
	if coupon == nil || err != nil {
		return outcome, err
	}

	sc := NewSyncContext(coupon, imp.fields, false)
	if coupon.IsNew() {
		couponDefaults(coupon)
	}

	if sc.ShouldProcess("code") || coupon.IsNew() {
		coupon.SetField(migration.FieldCode, code)
	}
	if sc.ShouldProcess("description") {
		coupon.SetField("description", c.Summary)
	}
	if sc.ShouldProcess("dates") {
		coupon.SetTime("date_created", c.CreatedAt)
		if c.EndsAt != nil {
			coupon.SetTime("date_expires", *c.EndsAt)
		} else {
			coupon.ClearField("date_expires")
		}
		if c.UpdatedAt != nil {
			coupon.SetTime("date_modified", *c.UpdatedAt)
		}
	}
	if sc.ShouldProcess("usage") {
		coupon.SetMeta(migration.MetaNumberPayments, strconv.Itoa(terms.NumberPayments))
		if terms.UsageLimit != nil {
			coupon.SetField("usage_limit", strconv.Itoa(*terms.UsageLimit))
		} else {
			coupon.ClearField("usage_limit")
		}
		coupon.SetField("usage_count", strconv.Itoa(usage))
		if terms.UsagePerUser > 0 {
			coupon.SetField("usage_limit_per_user", strconv.Itoa(terms.UsagePerUser))
		} else {
			coupon.ClearField("usage_limit_per_user")
		}
	}

	for _, adv := range advisories {
		sc.Advise(ctx, adv)
	}

	if sc.ShouldProcess("restrictions") {
		resetRestrictions(coupon)
		if terms.MinimumAmount.Valid {
			coupon.SetMoney("minimum_amount", terms.MinimumAmount.Decimal)
		}
		if terms.ProductIDs != nil {
			setList(coupon, "product_ids", productIDs)
		} else {
			coupon.ClearField("product_ids")
		}
		setList(coupon, "email_restrictions", terms.EmailRestrictions)
		if terms.FreeShipping {
			coupon.SetField("free_shipping", "true")
		}
	}

	if sc.ShouldProcess("amount") {
		discountType := terms.DiscountType
		if discountType == "" {
			discountType = migration.DiscountFixedCart
		}
		coupon.SetField("discount_type", discountType)
		coupon.SetMoney("amount", terms.Amount)
	}
	if primary {
		coupon.SetMeta(migration.MetaOriginalCouponID, c.ID)
	}

	if err := imp.persist(ctx, coupon); err != nil {
		return outcome, err
	}
	logger.L(ctx).Info("coupon processed",
		zap.String("local_id", coupon.ID.String()),
		zap.String("outcome", outcome.String()),
		zap.Bool("primary", primary),
	)
	return outcome, nil
}

// couponDefaults sets the rules of a coupon that was never imported
func couponDefaults(coupon *migration.Entity) {
	coupon.SetField("discount_type", migration.DiscountFixedCart)
	coupon.SetField("individual_use", "true")
}

// resetRestrictions clears the restrictions a previous import may have
// left behind
func resetRestrictions(coupon *migration.Entity) {
	coupon.ClearField("minimum_amount")
	coupon.ClearField("email_restrictions")
	coupon.ClearField("free_shipping")
	coupon.SetField("individual_use", "true")
}

// restrictedProducts resolves remote product ids to local product ids.
// Products that were never migrated are left out.
func (imp *CouponImporter) restrictedProducts(ctx context.Context, remoteIDs []string) ([]string, error) {
	var out []string
	for _, remoteID := range remoteIDs {
		product, _, err := imp.resolver.Resolve(ctx,
			ByMeta(migration.MetaOriginalProductID, remoteID, migration.KindProduct))
		if err != nil {
			return nil, err
		}
		if product == nil {
			logger.L(ctx).Debug("restricted product not migrated", zap.String("product_id", remoteID))
			continue
		}
		out = append(out, product.ID.String())
	}
	return out, nil
}
