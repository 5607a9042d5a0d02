package pipeline

import (
	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/reason"
)

// protectedTagKey is the NIP-70 bare "-" tag marking an event as
// protected: only its own authenticated author may submit it.
var protectedTagKey = []byte("-")

// pTagKey names the intended-recipient tag privileged events (DMs, gift
// wraps) are expected to carry.
var pTagKey = []byte("p")

// RelayPolicyValidator enforces the relay's own content/shape policy on
// an EVENT submission, and the query-shape policy (prefix length) on a
// REQ/COUNT's filters. It does not touch the store - checks that require
// looking up other stored events (the e-tag deletion author rule) belong
// to StorePolicy.
type RelayPolicyValidator struct{}

func (RelayPolicyValidator) Name() string { return "RelayPolicyValidator" }

func (RelayPolicyValidator) Call(ctx *Context, opts *Options) Result {
	switch ctx.Kind {
	case KindEvent:
		return checkEventPolicy(ctx, opts, ctx.Event.Event)
	case KindReq:
		return checkFilterPolicy(ctx, opts, ctx.Req.Subscription, ctx.Req.Filters, true)
	case KindCount:
		return checkFilterPolicy(ctx, opts, ctx.Count.Subscription, ctx.Count.Filters, false)
	}
	return Continue()
}

func checkEventPolicy(ctx *Context, opts *Options, ev *event.E) Result {
	if opts.Limits.MaxContentLength > 0 && len(ev.Content) > opts.Limits.MaxContentLength {
		return haltEventOK(ctx, ev, reason.Restricted.F("max content length exceeded"))
	}
	if opts.Limits.MaxEventTags > 0 && ev.Tags.Len() > opts.Limits.MaxEventTags {
		return haltEventOK(ctx, ev, reason.Restricted.F("max event tags exceeded"))
	}

	if ev.Tags.GetFirst(protectedTagKey) != nil {
		if !bytesEqual(ctx.Session.AuthedPubkey(), ev.Pubkey) {
			return haltEventOK(
				ctx, ev,
				reason.AuthRequired.F("protected event requires matching authenticated pubkey"),
			)
		}
	}

	if ev.Kind.IsPrivileged() && len(ev.Tags.GetAll(pTagKey)) == 0 {
		return haltEventOK(ctx, ev, reason.Restricted.F("privileged event missing recipient tag"))
	}

	if opts.Limits.MinPowDifficulty > 0 && leadingZeroBits(ev.Id) < opts.Limits.MinPowDifficulty {
		return haltEventOK(ctx, ev, reason.PoW.F("insufficient proof of work difficulty"))
	}

	return Continue()
}

func checkFilterPolicy(ctx *Context, opts *Options, sub string, filters []*filter.F, closedOnReject bool) Result {
	if opts.Policy.MinPrefixLength <= 0 {
		return Continue()
	}
	minBytes := (opts.Policy.MinPrefixLength + 1) / 2
	msg := reason.Restricted.F("filter prefix too short")
	for _, f := range filters {
		if !prefixesLongEnough(f.Ids, minBytes) || !prefixesLongEnough(f.Authors, minBytes) {
			if closedOnReject {
				ctx.Emit(envelope.NewClosed(sub, msg).Marshal(nil))
			}
			return Halt(msg)
		}
	}
	return Continue()
}

func prefixesLongEnough(entries [][]byte, minBytes int) bool {
	const fullLength = 32
	for _, e := range entries {
		if len(e) < fullLength && len(e) < minBytes {
			return false
		}
	}
	return true
}

func haltEventOK(ctx *Context, ev *event.E, msg string) Result {
	ctx.Emit(envelope.NewOK(ev.Id, false, msg).Marshal(nil))
	return Halt(msg)
}

// leadingZeroBits counts the leading zero bits of id, the NIP-13
// proof-of-work measure.
func leadingZeroBits(id []byte) int {
	n := 0
	for _, b := range id {
		if b == 0 {
			n += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if b&mask != 0 {
				return n
			}
			n++
		}
	}
	return n
}
