// Package skio reads the subscription and order exports produced by the Skio
// dashboard (Export → Subscriptions, Export → Orders).
package skio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/migrator/internal/domain/migration"
)

// ErrExportFilesMissing is returned when either export path is empty
var ErrExportFilesMissing = errors.New("skio: both the subscriptions and the orders export files are required")

// ExportFiles is the pair of Skio JSON exports. It implements
// migration.SubscriptionSource.
type ExportFiles struct {
	SubscriptionsPath string
	OrdersPath        string
	logger            *zap.Logger
}

var _ migration.SubscriptionSource = (*ExportFiles)(nil)

// NewExportFiles creates a source for the two export files
func NewExportFiles(subscriptionsPath, ordersPath string, logger *zap.Logger) (*ExportFiles, error) {
	if subscriptionsPath == "" || ordersPath == "" {
		return nil, ErrExportFilesMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportFiles{
		SubscriptionsPath: subscriptionsPath,
		OrdersPath:        ordersPath,
		logger:            logger,
	}, nil
}

// LoadSubscriptions decodes both files concurrently. Either file failing
// fails the load.
func (f *ExportFiles) LoadSubscriptions(ctx context.Context) (*migration.SubscriptionExport, error) {
	export := &migration.SubscriptionExport{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return decodeFile(ctx, f.SubscriptionsPath, &export.Subscriptions)
	})
	g.Go(func() error {
		return decodeFile(ctx, f.OrdersPath, &export.Orders)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.logger.Info("loaded skio exports",
		zap.Int("subscriptions", len(export.Subscriptions)),
		zap.Int("orders", len(export.Orders)),
	)
	return export, nil
}

// decodeFile reads a JSON array from path into out
func decodeFile(ctx context.Context, path string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", migration.ErrInvalidMigrationFile, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", migration.ErrInvalidMigrationFile, path, err)
	}
	return nil
}
