package migrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// DefaultCacheResetEvery is how many entities are processed between two
// lookup cache resets
const DefaultCacheResetEvery = 100

// Engine holds what every importer shares: the local store, the run lock,
// the lookup cache and the paging settings.
type Engine struct {
	store           migration.EntityStore
	lock            migration.RunLock
	cache           LookupCache
	media           migration.MediaStore
	retry           RetryPolicy
	pageDelay       time.Duration
	cacheResetEvery int
	weightUnit      string
	now             func() time.Time
	logger          *zap.Logger
}

// Option is a functional option for configuring the engine
type Option func(*Engine)

// WithRunLock guards runs of the same kind against each other
func WithRunLock(lock migration.RunLock) Option {
	return func(e *Engine) {
		e.lock = lock
	}
}

// WithLookupCache sets the identity lookup cache
func WithLookupCache(cache LookupCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithMediaStore sets where product images are sideloaded to
func WithMediaStore(media migration.MediaStore) Option {
	return func(e *Engine) {
		e.media = media
	}
}

// WithRetryPolicy sets the retry policy of remote calls
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(e *Engine) {
		e.retry = policy
	}
}

// WithPageDelay sets the pause between page fetches
func WithPageDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.pageDelay = d
	}
}

// WithCacheResetEvery sets how often the lookup cache is dropped
func WithCacheResetEvery(n int) Option {
	return func(e *Engine) {
		e.cacheResetEvery = n
	}
}

// WithWeightUnit sets the weight unit of the local store
func WithWeightUnit(unit string) Option {
	return func(e *Engine) {
		e.weightUnit = unit
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine over the local store
func NewEngine(store migration.EntityStore, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		retry:           DefaultRetryPolicy(),
		pageDelay:       DefaultPageDelay,
		cacheResetEvery: DefaultCacheResetEvery,
		weightUnit:      "kg",
		now:             time.Now,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// session is the per-run view of the engine. Dry runs get a store that
// keeps writes in memory.
type session struct {
	engine   *Engine
	store    migration.EntityStore
	resolver *IdentityResolver
	mappings *MappingStore
	sync     *Synchronizer
	fields   *migration.FieldSelector
	opts     RunOptions
}

func (e *Engine) newSession(opts RunOptions, known []string) (*session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	fields, err := opts.FieldSelector(known)
	if err != nil {
		return nil, err
	}

	store := e.store
	cache := e.cache
	if opts.DryRun {
		store = NewDryRunStore(store)
		// dry runs do not share the lookup cache
		cache = nil
	}
	mappings := NewMappingStore(store)
	return &session{
		engine:   e,
		store:    store,
		resolver: NewIdentityResolver(store, cache),
		mappings: mappings,
		sync:     NewSynchronizer(store, mappings),
		fields:   fields,
		opts:     opts,
	}, nil
}

// claim resolves the local counterpart of a remote entity and applies the
// --no-update and --no-create policies. A new entity is returned unsaved.
func (s *session) claim(ctx context.Context, kind migration.EntityKind, strategies ...Strategy) (*migration.Entity, Outcome, error) {
	e, by, err := s.resolver.Resolve(ctx, strategies...)
	if err != nil {
		return nil, OutcomeSkipped, err
	}

	if e != nil {
		if s.opts.NoUpdate {
			logger.L(ctx).Info("already migrated, skipping", zap.String("local_id", e.ID.String()))
			return nil, OutcomeSkipped, nil
		}
		logger.L(ctx).Info("found existing entity, updating",
			zap.String("local_id", e.ID.String()),
			zap.String("matched_by", by),
		)
		return e, OutcomeUpdated, nil
	}

	if s.opts.NoCreate {
		logger.L(ctx).Info("no local entity and creation is disabled, skipping")
		return nil, OutcomeSkipped, nil
	}
	return migration.NewEntity(kind), OutcomeCreated, nil
}

// persist creates or saves e
func (s *session) persist(ctx context.Context, e *migration.Entity) error {
	return persist(ctx, s.store, e)
}

func (s *session) now() time.Time {
	return s.engine.now()
}
