package pipeline

import (
	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/reason"
)

// MessageValidator enforces the shape constraints every accepted message
// kind must satisfy before anything downstream trusts it: a REQ/COUNT
// must carry at least one filter and a subscription id within the
// configured length limit.
type MessageValidator struct{}

func (MessageValidator) Name() string { return "MessageValidator" }

func (MessageValidator) Call(ctx *Context, opts *Options) Result {
	subIdTooLong := reason.Restricted.F("subscription id too long")
	switch ctx.Kind {
	case KindReq:
		if opts.Limits.MaxSubIdLength > 0 && len(ctx.Req.Subscription) > opts.Limits.MaxSubIdLength {
			ctx.Emit(envelope.NewClosed(ctx.Req.Subscription, subIdTooLong).Marshal(nil))
			return Halt(subIdTooLong)
		}
		if len(ctx.Req.Filters) == 0 {
			ctx.Emit(envelope.NewClosed(
				ctx.Req.Subscription, "invalid message format",
			).Marshal(nil))
			return Halt("invalid message format")
		}
	case KindCount:
		if opts.Limits.MaxSubIdLength > 0 && len(ctx.Count.Subscription) > opts.Limits.MaxSubIdLength {
			ctx.Emit(envelope.NewClosed(ctx.Count.Subscription, subIdTooLong).Marshal(nil))
			return Halt(subIdTooLong)
		}
		if len(ctx.Count.Filters) == 0 {
			ctx.Emit(envelope.NewClosed(
				ctx.Count.Subscription, "invalid message format",
			).Marshal(nil))
			return Halt("invalid message format")
		}
	case KindClose:
		if ctx.Close.Subscription == "" {
			return Halt("invalid message format")
		}
	}
	return Continue()
}
