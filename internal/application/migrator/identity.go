package migrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
)

// LookupCache memoizes resolved identities for a run
type LookupCache interface {
	Get(key string) (uuid.UUID, bool)
	Set(key string, id uuid.UUID)
	Forget(id uuid.UUID)
	Reset()
}

// Strategy is one way of finding the local counterpart of a remote entity
type Strategy struct {
	Name  string
	kinds []migration.EntityKind
	scope string
	key   string
	value string
	skip  bool
}

const (
	scopeMeta  = "meta"
	scopeField = "field"
)

// ByMeta matches entities whose metadata key equals value
func ByMeta(key, value string, kinds ...migration.EntityKind) Strategy {
	return Strategy{Name: key, kinds: kinds, scope: scopeMeta, key: key, value: value}
}

// ByField matches entities whose field equals value
func ByField(name, value string, kinds ...migration.EntityKind) Strategy {
	return Strategy{Name: name, kinds: kinds, scope: scopeField, key: name, value: value}
}

// When marks the strategy inapplicable unless cond holds. Inapplicable
// strategies are skipped without querying the store.
func (s Strategy) When(cond bool) Strategy {
	s.skip = s.skip || !cond
	return s
}

// Applicable reports whether the strategy will be tried
func (s Strategy) Applicable() bool {
	return !s.skip && s.value != ""
}

func (s Strategy) cacheKey() string {
	kinds := make([]string, len(s.kinds))
	for i, k := range s.kinds {
		kinds[i] = k.String()
	}
	return fmt.Sprintf("%s|%s|%s=%s", strings.Join(kinds, ","), s.scope, s.key, s.value)
}

// IdentityResolver finds local entities by trying strategies in order
type IdentityResolver struct {
	store migration.EntityStore
	cache LookupCache
}

// NewIdentityResolver creates a resolver. cache may be nil.
func NewIdentityResolver(store migration.EntityStore, cache LookupCache) *IdentityResolver {
	return &IdentityResolver{store: store, cache: cache}
}

// Resolve returns the entity matched by the first strategy that finds one,
// with the strategy name. It returns nil when nothing matches.
func (r *IdentityResolver) Resolve(ctx context.Context, strategies ...Strategy) (*migration.Entity, string, error) {
	for _, s := range strategies {
		if !s.Applicable() {
			continue
		}
		e, err := r.lookup(ctx, s)
		if err != nil {
			return nil, "", fmt.Errorf("resolve by %s: %w", s.Name, err)
		}
		if e != nil {
			return e, s.Name, nil
		}
	}
	return nil, "", nil
}

func (r *IdentityResolver) lookup(ctx context.Context, s Strategy) (*migration.Entity, error) {
	key := s.cacheKey()
	if r.cache != nil {
		if id, ok := r.cache.Get(key); ok {
			e, err := r.store.Get(ctx, id)
			if err == nil {
				return e, nil
			}
			if !errors.Is(err, migration.ErrEntityNotFound) {
				return nil, err
			}
			r.cache.Forget(id)
		}
	}

	var (
		found []*migration.Entity
		err   error
	)
	switch s.scope {
	case scopeMeta:
		found, err = r.store.FindByMeta(ctx, s.key, s.value, s.kinds...)
	default:
		found, err = r.store.FindByField(ctx, s.key, s.value, s.kinds...)
	}
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		logger.L(ctx).Warn("several local entities share an identity, using the oldest",
			zap.String("strategy", s.Name),
			zap.String("value", s.value),
			zap.Int("matches", len(found)),
		)
	}
	if r.cache != nil {
		r.cache.Set(key, found[0].ID)
	}
	return found[0], nil
}

// Forget drops cached identities pointing at id
func (r *IdentityResolver) Forget(id uuid.UUID) {
	if r.cache != nil {
		r.cache.Forget(id)
	}
}
