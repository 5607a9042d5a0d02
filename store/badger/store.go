// Package badger implements the store contract on top of a durable
// dgraph-io/badger key-value database, with the event-matching indexes
// that the policy layer needs (replaceable collapse, deletion masking,
// full-text search) held in lock-light concurrent maps rather than the
// physical key-packing scheme of a production index - that engine is an
// external collaborator this package stands in for.
package badger

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"

	"corvid.dev/chk"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/reason"
	"corvid.dev/errorf"
	"corvid.dev/interfaces/store"
	"corvid.dev/log"
)

const eventKeyPrefix = "ev:"

// Store is a badger-backed implementation of store.I.
type Store struct {
	db   *badgerdb.DB
	path string

	// events mirrors every event this store has ever accepted, keyed by
	// hex id, so QueryEvents can scan and match without round-tripping
	// through badger's own iterators. An event is never removed from
	// this map once indexed - superseded and deleted versions stay
	// here so a pure-id lookup can still find them; masked records
	// what to hide from ordinary queries.
	events *xsync.MapOf[string, *event.E]

	// replaceable maps a collapse key (kind 0/3/10000-19999: "pubkey:kind";
	// 30000-39999: "pubkey:kind:dtag") to the hex id of the event currently
	// occupying it.
	replaceable *xsync.MapOf[string, string]

	// masked records event ids hidden from ordinary queries: explicit
	// NIP-09 deletions and replaceable versions superseded by a newer
	// one. The event itself remains in events and badger so an
	// ids-only filter can still fetch it directly.
	masked *xsync.MapOf[string, struct{}]

	// words is the NIP-50 search index: lowercase content token to the
	// set of hex ids whose content contains it.
	words *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]

	mu sync.Mutex // serializes the insert-policy critical section
}

var _ store.I = (*Store)(nil)

// New constructs an unopened Store; call Init to open it.
func New() *Store {
	return &Store{
		events:      xsync.NewMapOf[string, *event.E](),
		replaceable: xsync.NewMapOf[string, string](),
		masked:      xsync.NewMapOf[string, struct{}](),
		words:       xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
	}
}

// Init opens the badger database at path, creating it if necessary, and
// warms the in-memory indexes from its contents.
func (s *Store) Init(path string) (err error) {
	s.path = path
	if err = os.MkdirAll(path, 0755); chk.E(err) {
		return
	}
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	if s.db, err = badgerdb.Open(opts); chk.E(err) {
		return
	}
	return s.warm()
}

// warm reloads every persisted event into the in-memory index. It does
// not reconstruct replaceable-collapse winners or deletion masks from
// the reloaded events - a restarted relay starts those derived indexes
// empty, matching the durability guarantees of the store it stands in
// for.
func (s *Store) warm() (err error) {
	err = s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var ev *event.E
			verr := item.Value(func(val []byte) error {
				ev = event.New()
				return msgpack.Unmarshal(val, ev)
			})
			if verr != nil {
				log.W.F("skipping unreadable stored event: %v", verr)
				continue
			}
			s.index(ev)
		}
		return nil
	})
	return err
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Wipe deletes every stored event and resets all in-memory indexes.
func (s *Store) Wipe() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.db.DropAll(); chk.E(err) {
		return
	}
	s.events = xsync.NewMapOf[string, *event.E]()
	s.replaceable = xsync.NewMapOf[string, string]()
	s.masked = xsync.NewMapOf[string, struct{}]()
	s.words = xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]]()
	return nil
}

func eventKey(id []byte) []byte {
	return append([]byte(eventKeyPrefix), id...)
}

// SaveEvent applies the replaceable/parameterized-replaceable collapse
// rule, rejects duplicates, masks events superseded by a deletion or a
// newer replacement, and persists every accepted event durably -
// including masked and ephemeral ones, so they remain reachable by an
// exact-id query; the query layer is what excludes ephemeral events and
// masked ones from ordinary reads.
func (s *Store) SaveEvent(ctx context.Context, ev *event.E) (store.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idHex := ev.IdString()
	if _, ok := s.events.Load(idHex); ok {
		return store.InsertResult{Outcome: store.Duplicate, Reason: reason.Duplicate.F("already have this event")}, nil
	}
	if ev.Kind.IsEphemeral() {
		// Ephemeral events are fully persisted like any other event; the
		// query layer excludes them from reads rather than this stage
		// skipping storage.
		if err := s.persist(ev); err != nil {
			return store.InsertResult{Outcome: store.Rejected, Reason: "error"}, err
		}
		s.index(ev)
		return store.InsertResult{Outcome: store.Accepted}, nil
	}

	result := store.InsertResult{Outcome: store.Accepted}

	collapseKey := replaceableKey(ev)
	supersedesHex := ""
	if collapseKey != "" {
		if prevHex, ok := s.replaceable.Load(collapseKey); ok {
			if prev, ok2 := s.events.Load(prevHex); ok2 {
				if !winsReplacement(ev, prev) {
					result = store.InsertResult{Outcome: store.Rejected, Reason: "rejected: stale replacement event"}
				} else {
					supersedesHex = prevHex
				}
			}
		}
	}

	if _, ok := s.masked.Load(idHex); ok {
		// A deletion already cited this id before the event itself
		// arrived. Keep the record but mask it from public query.
		result = store.InsertResult{Outcome: store.Rejected, Reason: "rejected: event is deleted"}
	}

	if err := s.persist(ev); err != nil {
		return store.InsertResult{Outcome: store.Rejected, Reason: "error"}, err
	}
	s.index(ev)

	switch {
	case result.Outcome != store.Accepted:
		s.masked.Store(idHex, struct{}{})
	case collapseKey != "":
		if supersedesHex != "" && supersedesHex != idHex {
			s.masked.Store(supersedesHex, struct{}{})
		}
		s.replaceable.Store(collapseKey, idHex)
	}
	return result, nil
}

// replaceableKey returns ev's replaceable-collapse key, or "" if ev's
// kind is a regular (non-collapsing) kind.
func replaceableKey(ev *event.E) string {
	switch {
	case ev.Kind.IsReplaceable():
		return ev.PubkeyString() + ":" + ev.Kind.Name()
	case ev.Kind.IsParameterizedReplaceable():
		d := ev.Tags.GetFirst([]byte("d"))
		dval := ""
		if d != nil {
			dval = string(d.Value())
		}
		return ev.PubkeyString() + ":" + ev.Kind.Name() + ":" + dval
	}
	return ""
}

// winsReplacement reports whether candidate should replace incumbent as
// the visible version of a replaceable collapse group: greatest
// created_at wins, ties broken by the lexicographically lowest id.
func winsReplacement(candidate, incumbent *event.E) bool {
	if candidate.CreatedAt.I64() != incumbent.CreatedAt.I64() {
		return candidate.CreatedAt.I64() > incumbent.CreatedAt.I64()
	}
	return bytes.Compare(candidate.Id, incumbent.Id) < 0
}

func (s *Store) persist(ev *event.E) error {
	b, err := msgpack.Marshal(ev)
	if err != nil {
		return errorf.E("encoding event for storage: %w", err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(eventKey(ev.Id), b)
	})
}

func (s *Store) index(ev *event.E) {
	idHex := ev.IdString()
	s.events.Store(idHex, ev)
	for _, tok := range searchTokens(ev.Content) {
		set, _ := s.words.LoadOrCompute(
			tok, func() *xsync.MapOf[string, struct{}] {
				return xsync.NewMapOf[string, struct{}]()
			},
		)
		set.Store(idHex, struct{}{})
	}
}

// DeleteEvent tombstones id so it is masked from ordinary queries (NIP-09).
// It does not require the event to already be stored: a deletion may cite
// an id the relay has not seen yet, masking it the moment it arrives.
func (s *Store) DeleteEvent(ctx context.Context, id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masked.Store(hex.Enc(id), struct{}{})
	return nil
}

// isPureIdLookup reports whether f's only active clause is ids - the
// shortcut that skips replaceable collapse and deletion masking so a
// client can retrieve a superseded or deleted event by its exact id.
func isPureIdLookup(f *filter.F) bool {
	return len(f.Ids) > 0 &&
		len(f.Kinds) == 0 && len(f.Authors) == 0 && len(f.Search) == 0 &&
		f.Since == nil && f.Until == nil &&
		(f.Tags == nil || f.Tags.Len() == 0)
}

// QueryEvents scans the in-memory index for events matching f, returning
// them newest-first and honoring f.Limit. Ephemeral events are stored
// but always skipped here. Masked events (deleted, or
// superseded replaceable versions) are excluded unless f is a pure-id
// lookup.
func (s *Store) QueryEvents(ctx context.Context, f *filter.F) (event.S, error) {
	var candidates map[string]struct{}
	if len(f.Search) > 0 {
		candidates = s.searchCandidates(f.Search)
		if len(candidates) == 0 {
			return nil, nil
		}
	}
	skipMask := isPureIdLookup(f)
	var out event.S
	s.events.Range(func(idHex string, ev *event.E) bool {
		if ev.Kind.IsEphemeral() {
			return true
		}
		if candidates != nil {
			if _, ok := candidates[idHex]; !ok {
				return true
			}
		}
		if !skipMask {
			if _, ok := s.masked.Load(idHex); ok {
				return true
			}
		}
		if f.Matches(ev) {
			out = append(out, ev)
		}
		return true
	})
	sortNewestFirst(out)
	if f.Limit != nil && uint(len(out)) > *f.Limit {
		out = out[:*f.Limit]
	}
	return out, nil
}

// CountEvents reports how many stored events satisfy f (NIP-45), without
// materializing or sorting the result set.
func (s *Store) CountEvents(ctx context.Context, f *filter.F) (uint64, error) {
	var candidates map[string]struct{}
	if len(f.Search) > 0 {
		candidates = s.searchCandidates(f.Search)
	}
	skipMask := isPureIdLookup(f)
	var n uint64
	s.events.Range(func(idHex string, ev *event.E) bool {
		if ev.Kind.IsEphemeral() {
			return true
		}
		if candidates != nil {
			if _, ok := candidates[idHex]; !ok {
				return true
			}
		}
		if !skipMask {
			if _, ok := s.masked.Load(idHex); ok {
				return true
			}
		}
		if f.Matches(ev) {
			n++
		}
		return true
	})
	return n, nil
}

func (s *Store) searchCandidates(search []byte) map[string]struct{} {
	toks := searchTokens(search)
	if len(toks) == 0 {
		return nil
	}
	var sets []*xsync.MapOf[string, struct{}]
	for _, t := range toks {
		set, ok := s.words.Load(t)
		if !ok {
			return map[string]struct{}{}
		}
		sets = append(sets, set)
	}
	out := map[string]struct{}{}
	sets[0].Range(func(idHex string, _ struct{}) bool {
		inAll := true
		for _, set := range sets[1:] {
			if _, ok := set.Load(idHex); !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out[idHex] = struct{}{}
		}
		return true
	})
	return out
}

func sortNewestFirst(s event.S) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s.Less(j, j-1); j-- {
			s.Swap(j, j-1)
		}
	}
}

// searchTokens lowercases and splits content on whitespace/punctuation
// for the full-text postings index.
func searchTokens(content []byte) []string {
	fields := strings.FieldsFunc(
		strings.ToLower(string(content)), func(r rune) bool {
			return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
		},
	)
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// EventCount reports the total number of events durably held by the
// store, including masked (deleted or superseded) ones, used for
// diagnostics.
func (s *Store) EventCount() uint64 { return uint64(s.events.Size()) }

// ResolveATag looks up the current event occupying a parameterized
// replaceable collapse key, used by deletion-by-a-tag handling.
func (s *Store) ResolveATag(pubkey []byte, k *kind.T, d string) (*event.E, bool) {
	key := hex.Enc(pubkey) + ":" + k.Name() + ":" + d
	idHex, ok := s.replaceable.Load(key)
	if !ok {
		return nil, false
	}
	return s.events.Load(idHex)
}

// FindByTag returns every stored event carrying a tag with the given key
// whose value matches val, used by e/a-tag deletion resolution without
// requiring a full filter round-trip.
func (s *Store) FindByTag(key, val []byte) []*event.E {
	var out []*event.E
	s.events.Range(func(_ string, ev *event.E) bool {
		for _, t := range ev.Tags.GetAll(key) {
			if bytes.Equal(t.Value(), val) {
				out = append(out, ev)
				break
			}
		}
		return true
	})
	return out
}
