package migrator

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

// DefaultPageDelay is the pause between two page fetches
const DefaultPageDelay = time.Second

// FetchFunc loads one page of remote items
type FetchFunc[T any] func(ctx context.Context, req migration.PageRequest) (migration.Page[T], error)

// Fetcher walks a paginated listing within an item budget. Each fetch asks
// for min(perPage, remaining) items and the budget shrinks by that amount
// whatever the page actually held.
type Fetcher[T any] struct {
	fetch     FetchFunc[T]
	retry     RetryPolicy
	perPage   int
	pageDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	fetched   int
}

// NewFetcher creates a fetcher
func NewFetcher[T any](fetch FetchFunc[T], retry RetryPolicy, perPage int, pageDelay time.Duration) *Fetcher[T] {
	sleep := retry.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Fetcher[T]{
		fetch:     fetch,
		retry:     retry,
		perPage:   max(perPage, 1),
		pageDelay: pageDelay,
		sleep:     sleep,
	}
}

// Fetch loads the page at cursor and returns it with the advanced cursor.
// Every fetch after the first waits for the page delay. A page without
// items is migration.ErrNoRemoteData.
func (f *Fetcher[T]) Fetch(ctx context.Context, cursor migration.Cursor) (migration.Page[T], migration.Cursor, error) {
	var page migration.Page[T]

	if f.fetched > 0 {
		if err := f.sleep(ctx, f.pageDelay); err != nil {
			return page, cursor, err
		}
	}
	f.fetched++

	budget := min(f.perPage, cursor.Remaining)
	req := migration.PageRequest{Cursor: cursor.Token, Limit: budget}

	ctx, span := telemetry.StartSpan(ctx, "migrator.fetch_page",
		telemetry.WithAttribute(telemetry.SpanAttrPage, f.fetched),
		telemetry.WithAttribute(telemetry.SpanAttrPageSize, budget),
	)
	defer span.End()

	err := f.retry.Do(ctx, "fetch page", func(ctx context.Context) error {
		var ferr error
		page, ferr = f.fetch(ctx, req)
		return ferr
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return page, cursor, err
	}
	if len(page.Items) == 0 {
		err := fmt.Errorf("%w: page %d", migration.ErrNoRemoteData, f.fetched)
		telemetry.RecordError(span, err)
		return page, cursor, err
	}

	telemetry.SetOK(span)
	return page, migration.Cursor{Token: page.NextCursor, Remaining: cursor.Remaining - budget}, nil
}

// More reports whether another page should be fetched after cursor
func (f *Fetcher[T]) More(cursor migration.Cursor) bool {
	return cursor.Token != "" && !cursor.Done()
}

// Pages returns how many fetches were attempted
func (f *Fetcher[T]) Pages() int {
	return f.fetched
}
