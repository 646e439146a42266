package migrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

// Outcome is what happened to one remote entity
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeUpdated
)

// String returns the string representation
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	}
	return "skipped"
}

// RunResult summarizes a run. NextCursor is set when the run stopped before
// the listing was exhausted; pass it as --next to resume.
type RunResult struct {
	Processed  int
	Created    int
	Updated    int
	Skipped    int
	Failed     int
	Pages      int
	NextCursor string
}

func (r *RunResult) count(o Outcome) {
	r.Processed++
	switch o {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	default:
		r.Skipped++
	}
}

// Handler processes the remote entities of one kind
type Handler[T any] interface {
	Kind() migration.EntityKind
	RemoteID(item T) string
	Process(ctx context.Context, item T) (Outcome, error)
}

// LockKey is the run lock key of a kind
func LockKey(kind migration.EntityKind) string {
	return "migrator:run:" + kind.String()
}

// Run walks the listing behind fetch and hands every item to h. A failing
// entity is logged and counted and the page goes on; a failing fetch ends
// the run. Cancellation is checked between entities and between pages.
func Run[T any](ctx context.Context, e *Engine, fetch FetchFunc[T], h Handler[T], opts RunOptions) (result *RunResult, err error) {
	runID := uuid.NewString()
	ctx = logger.WithContext(ctx, e.logger)
	ctx = logger.WithRunID(ctx, runID)
	kind := h.Kind()

	ctx, span := telemetry.StartServiceSpan(ctx, "migrator", "run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, runID),
		telemetry.WithAttribute(telemetry.SpanAttrEntityKind, kind),
		telemetry.WithAttribute(telemetry.SpanAttrDryRun, opts.DryRun),
	)
	defer func() {
		if result != nil {
			telemetry.SetAttributes(span,
				"processed", result.Processed,
				"created", result.Created,
				"updated", result.Updated,
				"skipped", result.Skipped,
				"failed", result.Failed,
				"pages", result.Pages,
			)
		}
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
		span.End()
	}()

	if e.lock != nil {
		key := LockKey(kind)
		ok, lerr := e.lock.Acquire(ctx, key)
		if lerr != nil {
			return nil, fmt.Errorf("acquire run lock: %w", lerr)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", migration.ErrRunLocked, key)
		}
		defer func() {
			if rerr := e.lock.Release(context.WithoutCancel(ctx), key); rerr != nil {
				logger.L(ctx).Warn("failed to release run lock", zap.String("key", key), zap.Error(rerr))
			}
		}()
	}

	log := logger.L(ctx)
	log.Info("run started",
		zap.String("kind", kind.String()),
		zap.Int("limit", opts.Limit),
		zap.Int("perpage", opts.PerPage),
		zap.Bool("dry_run", opts.DryRun),
	)

	result = &RunResult{}
	fetcher := NewFetcher(fetch, e.retry, opts.PerPage, e.pageDelay)
	cursor := migration.Cursor{Token: opts.Next, Remaining: opts.Limit}

	for {
		if err := ctx.Err(); err != nil {
			result.NextCursor = cursor.Token
			return result, err
		}

		page, next, ferr := fetcher.Fetch(ctx, cursor)
		if ferr != nil {
			result.NextCursor = cursor.Token
			log.Error("fetch failed, stopping run", zap.Int("page", fetcher.Pages()), zap.Error(ferr))
			return result, ferr
		}
		result.Pages++
		log.Info("processing page",
			zap.Int("page", result.Pages),
			zap.Int("items", len(page.Items)),
		)

		for i, item := range page.Items {
			if i >= cursor.Remaining {
				break
			}
			if err := ctx.Err(); err != nil {
				// the page is fetched again on resume
				result.NextCursor = cursor.Token
				return result, err
			}
			processOne(ctx, e, h, item, result)
		}

		cursor = next
		if !fetcher.More(cursor) {
			break
		}
		log.Info("more entities to process", zap.String("next", cursor.Token))
	}

	if cursor.Token != "" {
		result.NextCursor = cursor.Token
		log.Info("limit reached, resume with --next", zap.String("next", cursor.Token))
	}
	log.Info("run finished",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("pages", result.Pages),
	)
	return result, nil
}

// processOne runs the handler for one entity and books the outcome
func processOne[T any](ctx context.Context, e *Engine, h Handler[T], item T, result *RunResult) {
	remoteID := h.RemoteID(item)
	ctx = logger.WithEntity(ctx, h.Kind(), remoteID)
	ctx, span := telemetry.StartSpan(ctx, "migrator.entity",
		telemetry.WithSpanKind(trace.SpanKindInternal),
		telemetry.WithAttribute(telemetry.SpanAttrEntityKind, h.Kind()),
		telemetry.WithAttribute(telemetry.SpanAttrRemoteID, remoteID),
	)
	defer span.End()

	outcome, err := h.Process(ctx, item)
	if err != nil {
		if !errors.Is(err, migration.ErrEntityFailed) {
			err = fmt.Errorf("%w: %w", migration.ErrEntityFailed, err)
		}
		result.Processed++
		result.Failed++
		telemetry.RecordError(span, err)
		logger.L(ctx).Error("entity failed", zap.Error(err))
	} else {
		result.count(outcome)
		telemetry.SetAttribute(span, "outcome", outcome.String())
		telemetry.SetOK(span)
	}

	if e.cache != nil && e.cacheResetEvery > 0 && result.Processed%e.cacheResetEvery == 0 {
		e.cache.Reset()
		logger.L(ctx).Debug("lookup cache reset", zap.Int("processed", result.Processed))
	}
}
