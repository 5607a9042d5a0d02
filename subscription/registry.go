// Package subscription implements the live fan-out registry: the set of
// open REQ subscriptions across every connected client, matched and
// delivered to as new events are saved.
package subscription

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/log"
)

// Sink receives events matched to one of its registered subscriptions.
// A connection's session implements this to push EVENT envelopes back
// out over its websocket.
type Sink interface {
	Deliver(subscriptionId string, ev *event.E)
	// Id uniquely identifies the sink for registry bookkeeping, since
	// two sinks can't reliably be compared as map keys once wrapped in
	// an interface value.
	Id() string
	// AuthedPubkey returns the pubkey this sink's connection has
	// authenticated as, or nil if it hasn't (NIP-42).
	AuthedPubkey() []byte
}

// subs is what the registry holds per sink: a subscription id to the
// filters that must match for delivery.
type subs = *xsync.MapOf[string, []*filter.F]

// Registry is the process-wide table of live subscriptions. All methods
// are safe for concurrent use by many connection goroutines at once.
//
// mu resolves the replay/live ordering race (spec §4.6, §9 Open
// Questions): Deliver holds a read lock for the duration of matching and
// fan-out, while WithRegistrationLock holds the write lock around a
// REQ's registration and replay query, so no event accepted
// mid-registration can be both missed by the replay query and skipped by
// Deliver. The replay EVENT frames and EOSE are written after the lock is
// released, so an event can reach a subscription both in its replay and
// live, and a live delivery can reach the client before that replay's
// frames.
type Registry struct {
	sinks *xsync.MapOf[string, sinkEntry]
	mu    sync.RWMutex
}

type sinkEntry struct {
	sink Sink
	subs subs
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sinks: xsync.NewMapOf[string, sinkEntry]()}
}

// WithRegistrationLock runs fn while holding the registry's write lock,
// excluding any concurrent Deliver. A REQ handler calls this around
// registering its subscription and running its replay query, so a live
// insert can't land in the gap between the two.
func (r *Registry) WithRegistrationLock(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Register adds or replaces a subscription for a sink. Calling it again
// with the same sink and subscription id replaces the filter set, the
// behavior REQ has when reusing an open subscription id.
func (r *Registry) Register(sink Sink, subscriptionId string, filters []*filter.F) {
	entry, _ := r.sinks.LoadOrCompute(
		sink.Id(), func() sinkEntry {
			return sinkEntry{sink: sink, subs: xsync.NewMapOf[string, []*filter.F]()}
		},
	)
	entry.subs.Store(subscriptionId, filters)
}

// Unregister cancels one subscription on a sink (CLOSE).
func (r *Registry) Unregister(sink Sink, subscriptionId string) {
	if entry, ok := r.sinks.Load(sink.Id()); ok {
		entry.subs.Delete(subscriptionId)
	}
}

// Drop removes every subscription a sink holds, called when its
// connection closes.
func (r *Registry) Drop(sink Sink) {
	r.sinks.Delete(sink.Id())
}

// Deliver fans ev out to every live subscription whose filters match it.
// authorize, when non-nil, gates delivery of privileged-kind events
// (NIP-04/NIP-17/NIP-59 style DMs) to only their author or an
// explicitly mentioned recipient.
func (r *Registry) Deliver(ev *event.E, authorize func(sinkAuthedPubkey []byte, ev *event.E) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.sinks.Range(func(_ string, entry sinkEntry) bool {
		entry.subs.Range(
			func(subId string, filters []*filter.F) bool {
				for _, f := range filters {
					if !f.Matches(ev) {
						continue
					}
					if authorize != nil && ev.Kind.IsPrivileged() {
						if !authorize(entry.sink.AuthedPubkey(), ev) {
							return true
						}
					}
					log.T.F("dispatching event %s to subscription %s", ev.IdString(), subId)
					entry.sink.Deliver(subId, ev)
					return true
				}
				return true
			},
		)
		return true
	})
}

// Count returns the number of distinct sinks currently registered, for
// diagnostics.
func (r *Registry) Count() int { return r.sinks.Size() }
