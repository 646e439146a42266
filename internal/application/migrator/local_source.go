package migrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/erp/migrator/internal/domain/migration"
)

// Listings that are not paged remotely (export files, the local store) are
// walked with an offset cursor so that they go through the same driver and
// can be resumed with --next.

func parseOffset(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: invalid offset cursor %q", migration.ErrInvalidOptions, cursor)
	}
	return offset, nil
}

// SliceFetch pages through items held in memory
func SliceFetch[T any](items []T) FetchFunc[T] {
	return func(_ context.Context, req migration.PageRequest) (migration.Page[T], error) {
		offset, err := parseOffset(req.Cursor)
		if err != nil {
			return migration.Page[T]{}, err
		}
		if offset >= len(items) {
			return migration.Page[T]{}, nil
		}
		end := min(offset+max(req.Limit, 1), len(items))
		page := migration.Page[T]{Items: items[offset:end]}
		if end < len(items) {
			page.NextCursor = strconv.Itoa(end)
		}
		return page, nil
	}
}

// StoreFetch pages through the root entities of a kind in creation order
func StoreFetch(store migration.EntityStore, kind migration.EntityKind) FetchFunc[*migration.Entity] {
	return func(ctx context.Context, req migration.PageRequest) (migration.Page[*migration.Entity], error) {
		offset, err := parseOffset(req.Cursor)
		if err != nil {
			return migration.Page[*migration.Entity]{}, err
		}
		limit := max(req.Limit, 1)
		// one extra row tells whether another page exists
		found, err := store.List(ctx, kind, offset, limit+1)
		if err != nil {
			return migration.Page[*migration.Entity]{}, fmt.Errorf("list %s: %w", kind, err)
		}
		page := migration.Page[*migration.Entity]{Items: found}
		if len(found) > limit {
			page.Items = found[:limit]
			page.NextCursor = strconv.Itoa(offset + limit)
		}
		return page, nil
	}
}

// runLocal is Run for offset listings. An empty listing is a finished run
// rather than an error.
func runLocal[T any](ctx context.Context, e *Engine, fetch FetchFunc[T], h Handler[T], opts RunOptions) (*RunResult, error) {
	result, err := Run(ctx, e, fetch, h, opts)
	if errors.Is(err, migration.ErrNoRemoteData) && result != nil && result.Pages == 0 {
		return result, nil
	}
	return result, err
}
