package pipeline

import (
	"time"

	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/reason"
)

// AuthEnforcer rejects EVENT and REQ (and, by extension, COUNT) messages
// on a connection that requires authentication but hasn't completed it
// yet. AUTH and CLOSE always pass through: AUTH is the authentication
// attempt itself, and a client closing its own subscription needs no
// privilege. A remote that the throttle has blocked for repeated failed
// AUTH attempts is rejected with a NOTICE regardless of message kind.
type AuthEnforcer struct{}

func (AuthEnforcer) Name() string { return "AuthEnforcer" }

func (AuthEnforcer) Call(ctx *Context, opts *Options) Result {
	remote := ctx.Session.RealRemote()
	if opts.Throttle.IsBlocked(remote) {
		msg := reason.Blocked.F(
			"too many failed authentication attempts, blocked until " +
				opts.Throttle.BlockedUntil(remote).Format(time.RFC3339),
		)
		ctx.Emit(envelope.NewNotice(msg).Marshal(nil))
		return Halt(msg)
	}

	if !opts.AuthRequired || ctx.Session.IsAuthed() {
		return Continue()
	}

	msg := reason.AuthRequired.F("please authenticate")
	switch ctx.Kind {
	case KindEvent:
		ctx.Emit(envelope.NewOK(ctx.Event.Event.Id, false, msg).Marshal(nil))
		return Halt(msg)
	case KindReq:
		ctx.Emit(envelope.NewClosed(ctx.Req.Subscription, msg).Marshal(nil))
		return Halt(msg)
	case KindCount:
		ctx.Emit(envelope.NewClosed(ctx.Count.Subscription, msg).Marshal(nil))
		return Halt(msg)
	default:
		return Continue()
	}
}
