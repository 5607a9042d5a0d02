// Package store defines the persistence contract a relay uses to save,
// query, and delete events, independent of the physical storage engine
// backing it.
package store

import (
	"context"
	"io"

	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
)

// Outcome classifies what happened to an event submitted to SaveEvent.
type Outcome int

const (
	// Accepted means the event was written (or, for a replaceable kind,
	// collapsed over an older version).
	Accepted Outcome = iota
	// Duplicate means an event with the same id is already stored.
	Duplicate
	// Rejected means the store's own policy refused the event (e.g. it
	// was already masked by a deletion). Reason explains why.
	Rejected
)

// InsertResult is what SaveEvent reports back to the caller so it can
// build the right NIP-01 OK response.
type InsertResult struct {
	Outcome Outcome
	Reason  string
}

// I is the persistence contract for nostr events. Implementations own
// replaceable-kind collapse, ephemeral exclusion from reads, and
// deletion masking; the physical indexed-lookup engine underneath is an
// external collaborator.
type I interface {
	io.Closer

	// Init opens or creates the store at path.
	Init(path string) error

	// SaveEvent applies the store's insert policy and persists ev if
	// accepted.
	SaveEvent(ctx context.Context, ev *event.E) (InsertResult, error)

	// QueryEvents returns the events matching f, newest-first, honoring
	// f.Limit. Ephemeral-kind events are never returned.
	QueryEvents(ctx context.Context, f *filter.F) (event.S, error)

	// DeleteEvent masks the event with the given id (NIP-09): it is
	// excluded from every query but a pure-id lookup, and an event with
	// that id that first arrives after the deletion is rejected as deleted.
	DeleteEvent(ctx context.Context, id []byte) error

	// CountEvents reports how many stored events match f, for NIP-45.
	CountEvents(ctx context.Context, f *filter.F) (uint64, error)

	// Wipe deletes every event in the store.
	Wipe() error
}
