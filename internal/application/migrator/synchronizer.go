package migrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Decision
// ---------------------------------------------------------------------------

// Decision is what the synchronizer does with one remote sub-entity
type Decision int

const (
	// DecisionCreate creates a new local sub-entity
	DecisionCreate Decision = iota
	// DecisionUpdateExisting updates the sub-entity the mapping points at
	DecisionUpdateExisting
	// DecisionRepurposeConflicting takes over an unmapped local entity that
	// already holds the remote sub-entity's secondary key
	DecisionRepurposeConflicting
)

// String returns the string representation
func (d Decision) String() string {
	switch d {
	case DecisionCreate:
		return "create"
	case DecisionUpdateExisting:
		return "update_existing"
	case DecisionRepurposeConflicting:
		return "repurpose_conflicting"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// ---------------------------------------------------------------------------
// SyncContext
// ---------------------------------------------------------------------------

// SyncContext is the mutable state of one parent entity while its
// sub-entities are synchronized. It is never shared between entities.
type SyncContext struct {
	Parent        *migration.Entity
	Fields        *migration.FieldSelector
	RemoveOrphans bool
	// TaxRates maps a tax title to its rate id, rebuilt on every pass
	TaxRates   map[string]int
	Advisories []migration.Advisory

	mappings map[migration.Namespace]migration.Mapping
	seen     map[migration.Namespace]map[string]struct{}
}

// NewSyncContext creates the state for one parent entity
func NewSyncContext(parent *migration.Entity, fields *migration.FieldSelector, removeOrphans bool) *SyncContext {
	return &SyncContext{
		Parent:        parent,
		Fields:        fields,
		RemoveOrphans: removeOrphans,
		TaxRates:      make(map[string]int),
		mappings:      make(map[migration.Namespace]migration.Mapping),
		seen:          make(map[migration.Namespace]map[string]struct{}),
	}
}

// ShouldProcess reports whether a field is selected for this run
func (sc *SyncContext) ShouldProcess(field string) bool {
	return sc.Fields.ShouldProcess(field)
}

// Advise records an advisory and logs it
func (sc *SyncContext) Advise(ctx context.Context, adv migration.Advisory) {
	sc.Advisories = append(sc.Advisories, adv)
	logger.L(ctx).Advisory(adv)
}

func (sc *SyncContext) markSeen(ns migration.Namespace, remoteID string) {
	if sc.seen[ns] == nil {
		sc.seen[ns] = make(map[string]struct{})
	}
	sc.seen[ns][remoteID] = struct{}{}
}

func (sc *SyncContext) wasSeen(ns migration.Namespace, remoteID string) bool {
	_, ok := sc.seen[ns][remoteID]
	return ok
}

// ---------------------------------------------------------------------------
// Synchronizer
// ---------------------------------------------------------------------------

// SubEntity describes one remote sub-entity to synchronize
type SubEntity struct {
	Namespace migration.Namespace
	Kind      migration.EntityKind
	RemoteID  string
	// Conflict finds an unmapped local entity that already represents the
	// remote sub-entity. Optional.
	Conflict func(ctx context.Context) (*migration.Entity, error)
	// Owns reports whether a local child belongs to this remote sub-entity
	// even though the mapping lost track of it. Used by Replace. Optional.
	Owns func(e *migration.Entity) bool
	// Apply writes the remote values onto the local entity
	Apply func(e *migration.Entity) error
}

// Synchronizer keeps the children of a local entity in step with the
// sub-entities of its remote counterpart.
type Synchronizer struct {
	store    migration.EntityStore
	mappings *MappingStore
}

// NewSynchronizer creates a synchronizer
func NewSynchronizer(store migration.EntityStore, mappings *MappingStore) *Synchronizer {
	return &Synchronizer{store: store, mappings: mappings}
}

// Mapping returns the mapping of a namespace, loading it on first use
func (s *Synchronizer) Mapping(sc *SyncContext, ns migration.Namespace) (migration.Mapping, error) {
	if m, ok := sc.mappings[ns]; ok {
		return m, nil
	}
	m, err := s.mappings.Load(sc.Parent, ns)
	if err != nil {
		return nil, err
	}
	sc.mappings[ns] = m
	return m, nil
}

// Decide computes what to do with a remote sub-entity
func (s *Synchronizer) Decide(ctx context.Context, sc *SyncContext, sub SubEntity) (Decision, *migration.Entity, error) {
	mapping, err := s.Mapping(sc, sub.Namespace)
	if err != nil {
		return DecisionCreate, nil, err
	}

	if id, ok := mapping.Get(sub.RemoteID); ok {
		e, err := s.store.Get(ctx, id)
		switch {
		case err == nil && e.Kind == sub.Kind:
			return DecisionUpdateExisting, e, nil
		case err != nil && !errors.Is(err, migration.ErrEntityNotFound):
			return DecisionCreate, nil, err
		}
		logger.L(ctx).Debug("mapped sub-entity is gone, recreating",
			zap.String("namespace", string(sub.Namespace)),
			zap.String("sub_remote_id", sub.RemoteID),
		)
	}

	if sub.Conflict != nil {
		e, err := sub.Conflict(ctx)
		if err != nil {
			return DecisionCreate, nil, err
		}
		if e != nil {
			return DecisionRepurposeConflicting, e, nil
		}
	}
	return DecisionCreate, nil, nil
}

// Sync creates or updates the local counterpart of sub and records it in
// the mapping. A changed mapping is persisted straight away.
func (s *Synchronizer) Sync(ctx context.Context, sc *SyncContext, sub SubEntity) (*migration.Entity, Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, "migrator.sync_sub_entity",
		telemetry.WithAttribute(telemetry.SpanAttrEntityKind, sub.Kind),
		telemetry.WithAttribute(telemetry.SpanAttrRemoteID, sub.RemoteID),
	)
	defer span.End()

	decision, existing, err := s.Decide(ctx, sc, sub)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, decision, fmt.Errorf("decide %s %s: %w", sub.Kind, sub.RemoteID, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrDecision, decision.String())

	var e *migration.Entity
	switch decision {
	case DecisionUpdateExisting:
		e = s.updateExisting(sc, existing)
	case DecisionRepurposeConflicting:
		e = s.repurposeConflicting(ctx, sc, existing)
	default:
		e = s.create(sc, sub)
	}

	if sub.Apply != nil {
		if err := sub.Apply(e); err != nil {
			telemetry.RecordError(span, err)
			return nil, decision, fmt.Errorf("apply %s %s: %w", sub.Kind, sub.RemoteID, err)
		}
	}
	if err := persist(ctx, s.store, e); err != nil {
		telemetry.RecordError(span, err)
		return nil, decision, err
	}

	if err := s.record(ctx, sc, sub, e, decision); err != nil {
		telemetry.RecordError(span, err)
		return nil, decision, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrLocalID, e.ID.String())
	telemetry.SetOK(span)
	return e, decision, nil
}

// updateExisting re-parents e, so a sub-entity another parent took over
// comes back to the parent its mapping belongs to.
func (s *Synchronizer) updateExisting(sc *SyncContext, e *migration.Entity) *migration.Entity {
	e.ParentID = sc.Parent.ID
	return e
}

func (s *Synchronizer) repurposeConflicting(ctx context.Context, sc *SyncContext, e *migration.Entity) *migration.Entity {
	if e.ParentID != sc.Parent.ID {
		logger.L(ctx).Info("repurposing conflicting entity",
			zap.String("local_id", e.ID.String()),
			zap.String("kind", e.Kind.String()),
		)
	}
	e.ParentID = sc.Parent.ID
	return e
}

func (s *Synchronizer) create(sc *SyncContext, sub SubEntity) *migration.Entity {
	return migration.NewChildEntity(sub.Kind, sc.Parent.ID)
}

func (s *Synchronizer) record(ctx context.Context, sc *SyncContext, sub SubEntity, e *migration.Entity, decision Decision) error {
	sc.markSeen(sub.Namespace, sub.RemoteID)
	mapping, err := s.Mapping(sc, sub.Namespace)
	if err != nil {
		return err
	}
	if id, ok := mapping.Get(sub.RemoteID); ok && id == e.ID && decision == DecisionUpdateExisting {
		return nil
	}
	mapping.Set(sub.RemoteID, e.ID)
	return s.mappings.Save(ctx, sc.Parent, sub.Namespace, mapping)
}

// Replace deletes the local counterpart of sub and creates it again. The
// mapping entry is dropped before the old entity is deleted.
func (s *Synchronizer) Replace(ctx context.Context, sc *SyncContext, sub SubEntity) (*migration.Entity, error) {
	mapping, err := s.Mapping(sc, sub.Namespace)
	if err != nil {
		return nil, err
	}

	var stale []*migration.Entity
	if id, ok := mapping.Get(sub.RemoteID); ok {
		if e, err := s.store.Get(ctx, id); err == nil {
			stale = append(stale, e)
		} else if !errors.Is(err, migration.ErrEntityNotFound) {
			return nil, err
		}
		delete(mapping, sub.RemoteID)
	}
	if sub.Owns != nil {
		children, err := s.store.Children(ctx, sc.Parent.ID, sub.Kind)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if sub.Owns(child) && !containsEntity(stale, child) {
				stale = append(stale, child)
			}
		}
	}

	if len(stale) > 0 {
		for _, e := range stale {
			mapping.DropLocal(e.ID)
		}
		if err := s.mappings.Save(ctx, sc.Parent, sub.Namespace, mapping); err != nil {
			return nil, err
		}
		for _, e := range stale {
			logger.L(ctx).Info("replacing sub-entity",
				zap.String("kind", e.Kind.String()),
				zap.String("sub_remote_id", sub.RemoteID),
				zap.String("local_id", e.ID.String()),
			)
			if err := s.store.Delete(ctx, e.ID); err != nil && !errors.Is(err, migration.ErrEntityNotFound) {
				return nil, fmt.Errorf("delete %s %s: %w", e.Kind, e.ID, err)
			}
		}
	}

	e := s.create(sc, sub)
	if sub.Apply != nil {
		if err := sub.Apply(e); err != nil {
			return nil, fmt.Errorf("apply %s %s: %w", sub.Kind, sub.RemoteID, err)
		}
	}
	if err := persist(ctx, s.store, e); err != nil {
		return nil, err
	}
	if err := s.record(ctx, sc, sub, e, DecisionCreate); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveOrphans deletes the local children of kind that no remote
// sub-entity of this pass maps to. It does nothing unless the run removes
// orphans. Mapping entries for remote ids absent from this pass are pruned
// and saved before any child is deleted.
func (s *Synchronizer) RemoveOrphans(ctx context.Context, sc *SyncContext, ns migration.Namespace, kind migration.EntityKind) (int, error) {
	if !sc.RemoveOrphans {
		return 0, nil
	}
	mapping, err := s.Mapping(sc, ns)
	if err != nil {
		return 0, err
	}

	pruned := false
	for remoteID := range mapping {
		if !sc.wasSeen(ns, remoteID) {
			delete(mapping, remoteID)
			pruned = true
		}
	}
	if pruned {
		if err := s.mappings.Save(ctx, sc.Parent, ns, mapping); err != nil {
			return 0, err
		}
	}

	children, err := s.store.Children(ctx, sc.Parent.ID, kind)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, child := range children {
		if mapping.Contains(child.ID) {
			continue
		}
		logger.L(ctx).Info("removing orphan",
			zap.String("kind", kind.String()),
			zap.String("local_id", child.ID.String()),
		)
		if err := s.store.Delete(ctx, child.ID); err != nil {
			return removed, fmt.Errorf("delete orphan %s: %w", child.ID, err)
		}
		removed++
	}
	return removed, nil
}

// ClearChildren deletes every child of kind. Used for sub-entities that are
// rebuilt on each pass, such as tax and coupon lines.
func (s *Synchronizer) ClearChildren(ctx context.Context, parent *migration.Entity, kind migration.EntityKind) error {
	children, err := s.store.Children(ctx, parent.ID, kind)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.store.Delete(ctx, child.ID); err != nil {
			return fmt.Errorf("delete %s %s: %w", kind, child.ID, err)
		}
	}
	return nil
}

// AddChild creates a child that is not tracked by any mapping
func (s *Synchronizer) AddChild(ctx context.Context, parent *migration.Entity, kind migration.EntityKind, apply func(e *migration.Entity)) (*migration.Entity, error) {
	e := migration.NewChildEntity(kind, parent.ID)
	apply(e)
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return e, nil
}

// persist creates new entities and saves existing ones
func persist(ctx context.Context, store migration.EntityStore, e *migration.Entity) error {
	if e.IsNew() {
		if err := store.Create(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", e.Kind, err)
		}
		return nil
	}
	if err := store.Save(ctx, e); err != nil {
		return fmt.Errorf("save %s %s: %w", e.Kind, e.ID, err)
	}
	return nil
}

func containsEntity(list []*migration.Entity, e *migration.Entity) bool {
	for _, x := range list {
		if x.ID == e.ID {
			return true
		}
	}
	return false
}
