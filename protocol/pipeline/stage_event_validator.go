package pipeline

import (
	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/reason"
	"corvid.dev/encoders/timestamp"
)

// EventValidator checks the embedded event of an EVENT or AUTH message:
// its id must equal the recomputed canonical hash, its signature must
// verify, and its created_at must fall within the configured drift
// window of the relay's clock.
type EventValidator struct{}

func (EventValidator) Name() string { return "EventValidator" }

func (EventValidator) Call(ctx *Context, opts *Options) Result {
	var ev *event.E
	switch ctx.Kind {
	case KindEvent:
		ev = ctx.Event.Event
	case KindAuth:
		ev = ctx.Auth.Event
	default:
		return Continue()
	}

	calculated := ev.GetIDHash()
	if !bytesEqual(calculated, ev.Id) {
		return haltInvalidEvent(ctx, ev, reason.Invalid.F("event ID does not match hash"))
	}

	if !createdAtSane(ev.CreatedAt, opts.Limits) {
		return haltInvalidEvent(ctx, ev, reason.Invalid.F("invalid created_at"))
	}

	ok, err := ev.Verify()
	if err != nil || !ok {
		return haltInvalidEvent(ctx, ev, reason.Invalid.F("event signature verification failed"))
	}

	return Continue()
}

func haltInvalidEvent(ctx *Context, ev *event.E, msg string) Result {
	if ctx.Kind == KindEvent {
		ctx.Emit(envelope.NewOK(ev.Id, false, msg).Marshal(nil))
	}
	return Halt(msg)
}

func createdAtSane(ts *timestamp.T, limits Limits) bool {
	now := timestamp.Now().I64()
	t := ts.I64()
	if limits.CreatedAtLowerLimit > 0 && t < now-limits.CreatedAtLowerLimit {
		return false
	}
	if limits.CreatedAtUpperLimit > 0 && t > now+limits.CreatedAtUpperLimit {
		return false
	}
	return true
}
