package core

import (
	"context"
	"time"
)

// OpType identifies the kind of mutation a change event describes.
type OpType string

const (
	// OpCreate is emitted after a record is created.
	OpCreate OpType = "CREATE"

	// OpUpdate is emitted after a record is updated.
	OpUpdate OpType = "UPDATE"

	// OpDelete is emitted after a record is deleted.
	OpDelete OpType = "DELETE"
)

// ChangeEvent describes one committed mutation on one record. Events are
// published after the collection file has been rewritten; consumers see them
// at-most-once and must tolerate gaps.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Collection is the entity kind the mutation targeted.
	Collection string `json:"collection"`

	// Op is the mutation kind.
	Op OpType `json:"op"`

	// RecordID is the id of the affected record.
	RecordID int64 `json:"recordId"`

	// Fields is the full record after a create or update; nil for deletes.
	Fields Record `json:"fields,omitempty"`

	// At is when the mutation was committed.
	At time.Time `json:"at"`
}

// EventSink receives change events. Publishing is best-effort: a sink error
// is logged by the caller and never fails the mutation that produced the
// event.
type EventSink interface {
	// Publish delivers one event.
	Publish(ctx context.Context, event ChangeEvent) error

	// Close releases sink resources.
	Close() error
}
