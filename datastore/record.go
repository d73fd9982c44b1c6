// Package datastore defines the configuration and conflict-resolution surface
// for a local-first synchronization engine. The engine itself lives in the
// engine package; this package holds the contracts the engine consumes: the
// immutable Configuration, the conflict and error handler contracts, and the
// record and sync-expression abstractions they operate on.
package datastore

import "github.com/google/uuid"

// Record is a syncable domain record. Implementations should be treated as
// immutable snapshots; the sync packages never mutate a Record.
type Record interface {
	// ID returns the record's unique identifier.
	ID() string

	// Model returns the model (type) name the record belongs to.
	Model() string

	// Fields returns the record's field values.
	Fields() map[string]any
}

// MapRecord is a map-backed Record implementation.
type MapRecord struct {
	id     string
	model  string
	fields map[string]any
}

var _ Record = MapRecord{}

// NewRecord creates a MapRecord for the given model with a generated ID.
func NewRecord(model string, fields map[string]any) MapRecord {
	return NewRecordWithID(model, uuid.NewString(), fields)
}

// NewRecordWithID creates a MapRecord with an explicit ID. The fields map is
// copied so later mutation of the argument cannot leak into the record.
func NewRecordWithID(model, id string, fields map[string]any) MapRecord {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return MapRecord{id: id, model: model, fields: copied}
}

func (r MapRecord) ID() string { return r.id }

func (r MapRecord) Model() string { return r.model }

// Fields returns a copy of the record's field values.
func (r MapRecord) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Field returns a single field value and whether it is present.
func (r MapRecord) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// WithFields returns a new MapRecord with the given fields overlaid on this
// record's fields. Useful for building merged records in conflict handlers.
func (r MapRecord) WithFields(overlay map[string]any) MapRecord {
	merged := r.Fields()
	for k, v := range overlay {
		merged[k] = v
	}
	return MapRecord{id: r.id, model: r.model, fields: merged}
}
