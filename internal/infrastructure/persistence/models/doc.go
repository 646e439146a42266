// Package models contains GORM persistence models for the local entity store.
// Domain entities carry no ORM tags; these models own the table mapping and
// convert to and from migration.Entity.
//
// An entity is one row in entities plus one row per field or metadata value
// in entity_attributes, so new attributes need no schema change.
package models
