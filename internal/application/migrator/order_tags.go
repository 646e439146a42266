package migrator

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// OrderTagImporter copies only the tags of Shopify orders onto orders that
// were already migrated
type OrderTagImporter struct {
	*session
	source migration.OrderSource
}

var _ Handler[migration.RemoteOrder] = (*OrderTagImporter)(nil)

// NewOrderTagImporter creates an order tag importer. Creation is always off.
func NewOrderTagImporter(e *Engine, source migration.OrderSource, opts RunOptions) (*OrderTagImporter, error) {
	opts.NoCreate = true
	opts.NoUpdate = false
	opts.Fields = []string{"tags"}
	opts.ExcludeFields = nil
	s, err := e.newSession(opts, migration.OrderFields)
	if err != nil {
		return nil, err
	}
	return &OrderTagImporter{session: s, source: source}, nil
}

// Run walks the order listing
func (imp *OrderTagImporter) Run(ctx context.Context) (*RunResult, error) {
	q := migration.OrderQuery{
		Before: imp.opts.Before,
		After:  imp.opts.After,
		Status: imp.opts.Status,
		IDs:    imp.opts.IDs,
	}
	fetch := func(ctx context.Context, req migration.PageRequest) (migration.Page[migration.RemoteOrder], error) {
		return imp.source.ListOrders(ctx, q, req)
	}
	return Run(ctx, imp.engine, fetch, imp, imp.opts)
}

// Kind implements Handler
func (imp *OrderTagImporter) Kind() migration.EntityKind {
	return migration.KindOrder
}

// RemoteID implements Handler
func (imp *OrderTagImporter) RemoteID(o migration.RemoteOrder) string {
	return strconv.FormatInt(o.ID, 10)
}

// Process overwrites the tags of the order with the same order number
func (imp *OrderTagImporter) Process(ctx context.Context, o migration.RemoteOrder) (Outcome, error) {
	if imp.opts.Excluded(imp.RemoteID(o)) {
		return OutcomeSkipped, nil
	}
	order, outcome, err := imp.claim(ctx, migration.KindOrder,
		ByMeta(migration.MetaOrderNumber, strconv.FormatInt(o.OrderNumber, 10), migration.KindOrder))
	if order == nil || err != nil {
		return outcome, err
	}

	applyTags(order, o.Tags)
	if err := imp.persist(ctx, order); err != nil {
		return outcome, err
	}
	logger.L(ctx).Info("order tags updated",
		zap.String("local_id", order.ID.String()),
		zap.String("tags", order.Field("tags")),
	)
	return outcome, nil
}
