// Package migration contains the Migration bounded context.
// This context copies commerce entities from a remote platform into the local
// entity store, repeatedly and without duplicates.
//
// Key concepts:
//   - Entity: a local record with a field bag and a metadata bag
//   - EntityStore: Port interface for the local store (create/read/update/delete)
//   - RemoteOrder, RemoteProduct, RemoteCoupon, SkioSubscription: read-only remote records
//   - Mapping: remote sub-entity id to local sub-entity id, persisted per parent
//   - FieldSelector: which attributes a run is allowed to overwrite
//   - Advisory: non-fatal notice about a remote feature without a local equivalent
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package migration
