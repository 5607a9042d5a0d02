package pipeline

import (
	"context"
	"time"

	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/reason"
	"corvid.dev/interfaces/store"
	"corvid.dev/protocol/auth"
)

// MessageHandler is the final stage: it commits an EVENT to the store
// and fans it out, runs a REQ's replay and registers its live
// subscription, answers a COUNT, or tears down a CLOSE's subscription.
// For AUTH it checks the throttle, validates the challenge, relay tag,
// timestamp and signature via auth.Validate, applies PubkeyAllowed, and
// records the authenticated pubkey.
type MessageHandler struct{}

func (MessageHandler) Name() string { return "MessageHandler" }

func (MessageHandler) Call(ctx *Context, opts *Options) Result {
	switch ctx.Kind {
	case KindEvent:
		return handleEvent(ctx, opts)
	case KindReq:
		return handleReq(ctx, opts)
	case KindCount:
		return handleCount(ctx, opts)
	case KindClose:
		opts.Registry.Unregister(ctx.Session, ctx.Close.Subscription)
		return Continue()
	case KindAuth:
		return handleAuth(ctx, opts)
	}
	return Continue()
}

func handleEvent(ctx *Context, opts *Options) Result {
	ev := ctx.Event.Event
	result, err := opts.Store.SaveEvent(context.Background(), ev)
	if err != nil {
		ctx.Emit(envelope.NewOK(ev.Id, false, "could not store event").Marshal(nil))
		return Halt("could not store event")
	}

	ctx.Emit(envelope.NewOK(ev.Id, result.Outcome != store.Rejected, eventOKReason(result)).Marshal(nil))
	if result.Outcome != store.Accepted {
		return Continue()
	}

	if ev.Kind.Equal(kind.Deletion) {
		applyDeletions(opts, ev)
	}
	opts.Registry.Deliver(ev, auth.CheckPrivilege)
	return Continue()
}

// eventOKReason renders the message half of the OK response for a
// non-accepted outcome; an accepted event carries no message.
func eventOKReason(result store.InsertResult) string {
	if result.Outcome == store.Accepted {
		return ""
	}
	return result.Reason
}

// applyDeletions masks every target a just-accepted kind-5 event cites.
// Authorization was already confirmed by StorePolicy; here we only
// resolve each target to an id and tombstone it.
func applyDeletions(opts *Options, ev *event.E) {
	allowed := allowedDeletionKinds(ev)
	for _, t := range deletionTargets(ev) {
		if t.id != nil {
			if allowed != nil {
				f := filter.New()
				f.Ids = [][]byte{t.id}
				if results, err := opts.Store.QueryEvents(context.Background(), f); err == nil && len(results) > 0 {
					if _, ok := allowed[results[0].Kind.K]; !ok {
						continue
					}
				}
			}
			_ = opts.Store.DeleteEvent(context.Background(), t.id)
			continue
		}
		kNum, pubkey, d, ok := parseAddress(t.address)
		if !ok {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[uint16(kNum)]; !ok {
				continue
			}
		}
		resolver, ok := opts.Store.(aTagResolver)
		if !ok {
			continue
		}
		target, ok := resolver.ResolveATag(pubkey, kind.New(kNum), d)
		if !ok {
			continue
		}
		_ = opts.Store.DeleteEvent(context.Background(), target.Id)
	}
}

func handleReq(ctx *Context, opts *Options) Result {
	// Register and replay under the registry's write lock so a live
	// insert landing in the gap between registration and the replay
	// query can't be both missed here and skipped by a concurrent
	// Deliver (spec §4.6/§9).
	var merged event.S
	var err error
	opts.Registry.WithRegistrationLock(func() {
		opts.Registry.Register(ctx.Session, ctx.Req.Subscription, ctx.Req.Filters)
		merged, err = runQuery(opts, ctx.Req.Filters)
	})
	if err != nil {
		ctx.Emit(envelope.NewClosed(ctx.Req.Subscription, "could not query events").Marshal(nil))
		return Halt("could not query events")
	}

	limit := effectiveLimit(opts.Limits, ctx.Req.Filters)
	if limit > 0 && uint(len(merged)) > limit {
		merged = merged[:limit]
	}
	for _, ev := range merged {
		ctx.Emit(envelope.NewResult(ctx.Req.Subscription, ev).Marshal(nil))
	}
	ctx.Emit(envelope.NewEOSE(ctx.Req.Subscription).Marshal(nil))
	return Continue()
}

func handleCount(ctx *Context, opts *Options) Result {
	merged, err := runQuery(opts, ctx.Count.Filters)
	if err != nil {
		ctx.Emit(envelope.NewNotice("could not query events").Marshal(nil))
		return Halt("could not query events")
	}
	ctx.Emit(envelope.NewCountResponse(ctx.Count.Subscription, uint64(len(merged))).Marshal(nil))
	return Continue()
}

// runQuery runs every filter, unions the results deduplicated by id
// (each filter already excludes masked/ephemeral events on its own),
// and returns them newest-first.
func runQuery(opts *Options, filters []*filter.F) (event.S, error) {
	seen := make(map[string]struct{})
	var merged event.S
	for _, f := range filters {
		results, err := opts.Store.QueryEvents(context.Background(), f)
		if err != nil {
			return nil, err
		}
		for _, ev := range results {
			idHex := ev.IdString()
			if _, ok := seen[idHex]; ok {
				continue
			}
			seen[idHex] = struct{}{}
			merged = append(merged, ev)
		}
	}
	sortNewestFirstS(merged)
	return merged, nil
}

func sortNewestFirstS(s event.S) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s.Less(j, j-1); j-- {
			s.Swap(j, j-1)
		}
	}
}

// effectiveLimit is the minimum of every filter's own limit, falling
// back to the configured default and capped at the configured maximum.
func effectiveLimit(limits Limits, filters []*filter.F) uint {
	var limit uint
	set := false
	for _, f := range filters {
		if f.Limit == nil {
			continue
		}
		if !set || *f.Limit < limit {
			limit = *f.Limit
			set = true
		}
	}
	if !set {
		limit = limits.DefaultLimit
	}
	if limits.MaxLimit > 0 && limit > limits.MaxLimit {
		limit = limits.MaxLimit
	}
	return limit
}

func handleAuth(ctx *Context, opts *Options) Result {
	ev := ctx.Auth.Event
	remote := ctx.Session.RealRemote()

	if opts.Throttle.IsBlocked(remote) {
		msg := reason.Blocked.F(
			"too many failed authentication attempts, blocked until " +
				opts.Throttle.BlockedUntil(remote).Format(time.RFC3339),
		)
		ctx.Emit(envelope.NewNotice(msg).Marshal(nil))
		return Halt(msg)
	}

	ok, err := auth.Validate(ev, ctx.Session.Challenge(), opts.ServiceURL)
	if err != nil || !ok {
		opts.Throttle.RecordFailedAttempt(remote)
		msg := classifyAuthFailure(ev, ctx.Session.Challenge())
		ctx.Emit(envelope.NewOK(ev.Id, false, msg).Marshal(nil))
		return Halt(msg)
	}

	if !opts.PubkeyAllowed(ev.Pubkey) {
		opts.Throttle.RecordFailedAttempt(remote)
		msg := reason.Blocked.F("pubkey not permitted to authenticate")
		ctx.Emit(envelope.NewOK(ev.Id, false, msg).Marshal(nil))
		return Halt(msg)
	}

	opts.Throttle.Authenticate(remote)
	ctx.Session.SetAuthedPubkey(ev.Pubkey)
	ctx.Emit(envelope.NewOK(ev.Id, true, "").Marshal(nil))
	return Continue()
}

// classifyAuthFailure distinguishes why an AUTH event failed validation
// so the client gets the specific stable notice rather than a generic
// one; auth.Validate itself only returns a single bool/error pair.
func classifyAuthFailure(ev *event.E, challenge string) string {
	if !ev.Kind.Equal(kind.AuthEvent) {
		return reason.AuthRequired.F("invalid auth event kind")
	}
	c := ev.Tags.GetFirst([]byte("challenge"))
	if c == nil || string(c.Value()) != challenge {
		return reason.AuthRequired.F("challenge mismatch")
	}
	return reason.AuthRequired.F("authentication failed")
}
