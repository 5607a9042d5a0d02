package pipeline

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/kind"
)

var (
	eTagKey = []byte("e")
	aTagKey = []byte("a")
	kTagKey = []byte("k")
)

// deletionTarget names one event a kind-5 deletion cites, either by
// exact id or by replaceable-collapse address.
type deletionTarget struct {
	id      []byte // non-nil for an e-tag target
	address string // non-empty for an a-tag target, "kind:pubkey:dtag"
}

// StorePolicy resolves the authorization question a deletion raises
// before anything is committed: does e.pubkey actually own every event
// it cites? Ordinary EVENT submissions pass through untouched - their
// duplicate/staleness/masking disposition is decided atomically inside
// the store's own SaveEvent, which MessageHandler calls next.
type StorePolicy struct{}

func (StorePolicy) Name() string { return "StorePolicy" }

func (StorePolicy) Call(ctx *Context, opts *Options) Result {
	if ctx.Kind != KindEvent {
		return Continue()
	}
	ev := ctx.Event.Event
	if !ev.Kind.Equal(kind.Deletion) {
		return Continue()
	}
	if opts.IsOwner(ev.Pubkey) {
		return Continue()
	}

	targets := deletionTargets(ev)
	allowedKinds := allowedDeletionKinds(ev)

	for _, t := range targets {
		author, found := resolveTargetAuthor(opts, t, allowedKinds)
		if !found {
			// Nothing stored under that id/address yet: nothing to
			// authorize against, and nothing to mask either.
			continue
		}
		if !bytes.Equal(author, ev.Pubkey) {
			ctx.Emit(envelope.NewOK(
				ev.Id, false, "rejected: deletion can only target events by same pubkey",
			).Marshal(nil))
			return Halt("rejected: deletion can only target events by same pubkey")
		}
	}

	return Continue()
}

// deletionTargets extracts every e-tag id and a-tag address a kind-5
// event cites.
func deletionTargets(ev *event.E) []deletionTarget {
	var out []deletionTarget
	for _, t := range ev.Tags.GetAll(eTagKey) {
		if id, err := hexToBytes(t.Value()); err == nil {
			out = append(out, deletionTarget{id: id})
		}
	}
	for _, t := range ev.Tags.GetAll(aTagKey) {
		out = append(out, deletionTarget{address: string(t.Value())})
	}
	return out
}

// allowedDeletionKinds returns the kind numbers a deletion's k-tags
// restrict it to, or nil if it carries none (unrestricted).
func allowedDeletionKinds(ev *event.E) map[uint16]struct{} {
	ks := ev.Tags.GetAll(kTagKey)
	if len(ks) == 0 {
		return nil
	}
	out := make(map[uint16]struct{}, len(ks))
	for _, t := range ks {
		n, err := strconv.Atoi(string(t.Value()))
		if err != nil {
			continue
		}
		out[uint16(n)] = struct{}{}
	}
	return out
}

// aTagResolver is the optional capability a store exposes to resolve a
// parameterized-replaceable address to the event currently occupying
// it, used to authorize and mask a-tag deletions.
type aTagResolver interface {
	ResolveATag(pubkey []byte, k *kind.T, d string) (*event.E, bool)
}

// resolveTargetAuthor looks up the stored event a deletion target
// names and returns its author pubkey, honoring any k-tag kind
// restriction. found is false when nothing stored matches (either not
// seen yet, or excluded by the k-tag restriction).
func resolveTargetAuthor(opts *Options, t deletionTarget, allowed map[uint16]struct{}) (author []byte, found bool) {
	if t.id != nil {
		f := filter.New()
		f.Ids = [][]byte{t.id}
		results, err := opts.Store.QueryEvents(context.Background(), f)
		if err != nil || len(results) == 0 {
			return nil, false
		}
		ev := results[0]
		if allowed != nil {
			if _, ok := allowed[ev.Kind.K]; !ok {
				return nil, false
			}
		}
		return ev.Pubkey, true
	}

	kNum, pubkey, d, ok := parseAddress(t.address)
	if !ok {
		return nil, false
	}
	if !kind.New(kNum).IsParameterizedReplaceable() {
		// a-tag deletions only ever address parameterized-replaceable
		// kinds; anything else is not a resolvable target.
		return nil, false
	}
	if allowed != nil {
		if _, ok := allowed[uint16(kNum)]; !ok {
			return nil, false
		}
	}
	resolver, ok := opts.Store.(aTagResolver)
	if !ok {
		return nil, false
	}
	ev, ok := resolver.ResolveATag(pubkey, kind.New(kNum), d)
	if !ok {
		return nil, false
	}
	return ev.Pubkey, true
}

// parseAddress splits a NIP-09 "a" tag value of the form
// "kind:pubkey-hex:d-tag" into its parts.
func parseAddress(addr string) (k int, pubkey []byte, d string, ok bool) {
	parts := strings.SplitN(addr, ":", 3)
	if len(parts) < 2 {
		return 0, nil, "", false
	}
	kNum, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, nil, "", false
	}
	pk, err := hexToBytes([]byte(parts[1]))
	if err != nil {
		return 0, nil, "", false
	}
	if len(parts) == 3 {
		d = parts[2]
	}
	return kNum, pk, d, true
}

func hexToBytes(v []byte) ([]byte, error) {
	return hex.Dec(string(v))
}
