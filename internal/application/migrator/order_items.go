package migrator

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// lineTaxData is the {subtotal, total} per rate id blob of an item
type lineTaxData struct {
	Subtotal map[string]string `json:"subtotal"`
	Total    map[string]string `json:"total"`
}

// ---------------------------------------------------------------------------
// Tax lines
// ---------------------------------------------------------------------------

// syncTaxLines builds the title → rate id table and, when tax lines are
// selected, rebuilds the tax children of the order
func (imp *OrderImporter) syncTaxLines(ctx context.Context, sc *SyncContext, o *migration.RemoteOrder) error {
	clear(sc.TaxRates)
	for i, t := range o.TaxLines {
		sc.TaxRates[t.Title] = i
	}

	if !sc.ShouldProcess("tax_lines") {
		return nil
	}
	if err := imp.sync.ClearChildren(ctx, sc.Parent, migration.KindTaxLine); err != nil {
		return err
	}
	for i, t := range o.TaxLines {
		_, err := imp.sync.AddChild(ctx, sc.Parent, migration.KindTaxLine, func(e *migration.Entity) {
			e.SetField("rate_id", strconv.Itoa(i))
			e.SetField("label", t.Title)
			e.SetMoney("tax_total", t.Price)
			e.SetField("rate_percent", t.Rate.Mul(decimal.NewFromInt(100)).String())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// itemTaxes maps the taxes of a line onto the order's rate ids. Taxes whose
// title is not on the order are dropped.
func itemTaxes(sc *SyncContext, taxes []migration.RemoteTaxLine) *lineTaxData {
	if len(sc.TaxRates) == 0 || len(taxes) == 0 {
		return nil
	}
	data := &lineTaxData{Subtotal: map[string]string{}, Total: map[string]string{}}
	for _, t := range taxes {
		rateID, ok := sc.TaxRates[t.Title]
		if !ok {
			continue
		}
		key := strconv.Itoa(rateID)
		data.Subtotal[key] = t.Price.StringFixed(2)
		data.Total[key] = t.Price.StringFixed(2)
	}
	return data
}

func setItemTaxes(e *migration.Entity, sc *SyncContext, taxes []migration.RemoteTaxLine) error {
	data := itemTaxes(sc, taxes)
	if data == nil {
		e.DeleteMeta(migration.MetaLineTaxData)
		return nil
	}
	total := decimal.Zero
	for _, t := range taxes {
		total = total.Add(t.Price)
	}
	e.SetMoney("total_tax", total)
	return e.SetMetaJSON(migration.MetaLineTaxData, data)
}

// ---------------------------------------------------------------------------
// Line items
// ---------------------------------------------------------------------------

func (imp *OrderImporter) syncLineItems(ctx context.Context, sc *SyncContext, o *migration.RemoteOrder) error {
	if !sc.ShouldProcess("line_items") {
		return nil
	}
	for _, item := range o.LineItems {
		productID, variationID, err := imp.resolveLineProduct(ctx, item)
		if err != nil {
			return err
		}
		_, _, err = imp.sync.Sync(ctx, sc, SubEntity{
			Namespace: migration.NamespaceLineItems,
			Kind:      migration.KindLineItem,
			RemoteID:  migration.RemoteKey(item.ID),
			Apply: func(e *migration.Entity) error {
				e.SetField("name", item.Name)
				e.SetField("quantity", strconv.Itoa(item.Quantity))
				e.SetMoney("subtotal", item.Subtotal())
				e.SetMoney("total", item.Total())
				setRef(e, "product_id", productID)
				setRef(e, "variation_id", variationID)
				e.SetMeta(migration.MetaOriginalLineItemID, migration.RemoteKey(item.ID))
				return setItemTaxes(e, sc, item.TaxLines)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveLineProduct finds the local product and variation of a line item.
// The SKU wins; otherwise the remote product id and the product's
// variations mapping are used.
func (imp *OrderImporter) resolveLineProduct(ctx context.Context, item migration.RemoteLineItem) (product, variation uuid.UUID, err error) {
	if item.SKU != "" {
		e, _, err := imp.resolver.Resolve(ctx,
			ByField(migration.FieldSKU, item.SKU, migration.KindProduct, migration.KindVariation))
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		if e != nil {
			if e.Kind == migration.KindVariation {
				return e.ParentID, e.ID, nil
			}
			return e.ID, uuid.Nil, nil
		}
	}

	if !item.ProductExists || item.ProductID == 0 {
		return uuid.Nil, uuid.Nil, nil
	}
	parent, _, err := imp.resolver.Resolve(ctx,
		ByMeta(migration.MetaOriginalProductID, migration.RemoteKey(item.ProductID), migration.KindProduct))
	if err != nil || parent == nil {
		if parent == nil && err == nil {
			logger.L(ctx).Debug("line item product not migrated", zap.Int64("product_id", item.ProductID))
		}
		return uuid.Nil, uuid.Nil, err
	}
	data, err := migration.LoadMigrationData(parent, item.ProductID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	variationID, _ := data.VariationsMapping.Get(migration.RemoteKey(item.VariantID))
	return parent.ID, variationID, nil
}

func setRef(e *migration.Entity, field string, id uuid.UUID) {
	if id == uuid.Nil {
		e.ClearField(field)
		return
	}
	e.SetField(field, id.String())
}

// ---------------------------------------------------------------------------
// Shipping lines
// ---------------------------------------------------------------------------

func (imp *OrderImporter) syncShippingLines(ctx context.Context, sc *SyncContext, o *migration.RemoteOrder) error {
	if !sc.ShouldProcess("shipping_lines") {
		return nil
	}
	for _, line := range o.ShippingLines {
		_, _, err := imp.sync.Sync(ctx, sc, SubEntity{
			Namespace: migration.NamespaceShippingLines,
			Kind:      migration.KindShippingLine,
			RemoteID:  migration.RemoteKey(line.ID),
			Apply: func(e *migration.Entity) error {
				e.SetField("method_title", line.Title)
				e.SetField("method_id", line.Code)
				e.SetMoney("total", line.Price)
				return setItemTaxes(e, sc, line.TaxLines)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// removeOrphanItems runs after the item passes so that the mappings hold
// exactly the remote ids of this pass
func (imp *OrderImporter) removeOrphanItems(ctx context.Context, sc *SyncContext) error {
	passes := []struct {
		field string
		ns    migration.Namespace
		kind  migration.EntityKind
	}{
		{"line_items", migration.NamespaceLineItems, migration.KindLineItem},
		{"shipping_lines", migration.NamespaceShippingLines, migration.KindShippingLine},
	}
	for _, p := range passes {
		if !sc.ShouldProcess(p.field) {
			continue
		}
		removed, err := imp.sync.RemoveOrphans(ctx, sc, p.ns, p.kind)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.L(ctx).Info("orphans removed", zap.String("kind", p.kind.String()), zap.Int("count", removed))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Discounts
// ---------------------------------------------------------------------------

func (imp *OrderImporter) syncDiscountLines(ctx context.Context, sc *SyncContext, o *migration.RemoteOrder) error {
	if !sc.ShouldProcess("discounts") {
		return nil
	}
	if err := imp.sync.ClearChildren(ctx, sc.Parent, migration.KindCouponLine); err != nil {
		return err
	}
	for _, d := range o.DiscountApplications {
		_, err := imp.sync.AddChild(ctx, sc.Parent, migration.KindCouponLine, func(e *migration.Entity) {
			e.SetField(migration.FieldCode, d.CouponCode())
			e.SetMoney("discount", d.Value)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Refunds
// ---------------------------------------------------------------------------

// syncRefunds replaces each local refund with a fresh copy of the remote one
func (imp *OrderImporter) syncRefunds(ctx context.Context, sc *SyncContext, o *migration.RemoteOrder) error {
	if !sc.ShouldProcess("refunds") {
		return nil
	}
	items, err := imp.sync.Mapping(sc, migration.NamespaceLineItems)
	if err != nil {
		return err
	}

	for _, r := range o.Refunds {
		remoteID := migration.RemoteKey(r.ID)
		_, err := imp.sync.Replace(ctx, sc, SubEntity{
			Namespace: migration.NamespaceRefunds,
			Kind:      migration.KindRefund,
			RemoteID:  remoteID,
			Owns: func(e *migration.Entity) bool {
				return e.GetMeta(migration.MetaOriginalRefundID) == remoteID
			},
			Apply: func(e *migration.Entity) error {
				return applyRefund(e, r, items)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type refundLine struct {
	Qty         int    `json:"qty"`
	RefundTotal string `json:"refund_total"`
}

func applyRefund(e *migration.Entity, r migration.RemoteRefund, items migration.Mapping) error {
	e.SetMoney("amount", r.Amount())
	e.SetField("reason", r.Note)
	e.SetTime("date_created", r.CreatedAt)
	if r.ProcessedAt != nil {
		e.SetMeta(migration.MetaRefundCompletedDate, r.ProcessedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if len(r.Transactions) > 0 && r.Transactions[0].Receipt.RefundTransactionID != "" {
		e.SetMeta(migration.MetaTransactionID, r.Transactions[0].Receipt.RefundTransactionID)
	}
	e.SetMeta(migration.MetaOriginalRefundID, migration.RemoteKey(r.ID))

	lines := make(map[string]refundLine, len(r.RefundLineItems))
	for _, li := range r.RefundLineItems {
		localID, ok := items.Get(migration.RemoteKey(li.LineItemID))
		if !ok {
			continue
		}
		lines[localID.String()] = refundLine{Qty: li.Quantity, RefundTotal: li.Subtotal.StringFixed(2)}
	}
	if len(lines) == 0 {
		return nil
	}
	return e.SetMetaJSON("_refunded_line_items", lines)
}
