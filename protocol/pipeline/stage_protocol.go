package pipeline

import (
	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/reason"
	"corvid.dev/encoders/text"
)

// ProtocolValidator is the first stage: it enforces the frame size limit,
// identifies the envelope label, and decodes it into the typed message
// the rest of the chain operates on. Parse failures are classified
// (invalid format, unsupported escape, unsupported literal control) so
// the halt reason matches the stable notice vocabulary.
type ProtocolValidator struct{}

func (ProtocolValidator) Name() string { return "ProtocolValidator" }

func (ProtocolValidator) Call(ctx *Context, opts *Options) Result {
	if opts.Limits.MaxMessageLength > 0 && len(ctx.RawFrame) > opts.Limits.MaxMessageLength {
		return Halt(reason.Restricted.F("max message length exceeded"))
	}

	label, rest, err := envelope.Identify(ctx.RawFrame)
	if err != nil {
		return Halt(classifyParseError(err))
	}

	switch label {
	case envelope.LEvent:
		ctx.Kind = KindEvent
		ctx.Event = envelope.NewSubmission()
		if _, err = ctx.Event.Unmarshal(rest); err != nil {
			return Halt(classifyParseError(err))
		}
	case envelope.LReq:
		ctx.Kind = KindReq
		ctx.Req = envelope.NewReq()
		if _, err = ctx.Req.Unmarshal(rest); err != nil {
			return Halt(classifyParseError(err))
		}
	case envelope.LClose:
		ctx.Kind = KindClose
		ctx.Close = &envelope.Close{}
		if _, err = ctx.Close.Unmarshal(rest); err != nil {
			return Halt(classifyParseError(err))
		}
	case envelope.LCount:
		ctx.Kind = KindCount
		ctx.Count = envelope.NewCount()
		if _, err = ctx.Count.Unmarshal(rest); err != nil {
			return Halt(classifyParseError(err))
		}
	case envelope.LAuth:
		ctx.Kind = KindAuth
		ctx.Auth = &envelope.AuthResponse{}
		if _, err = ctx.Auth.Unmarshal(rest); err != nil {
			return Halt(classifyParseError(err))
		}
	default:
		ctx.Kind = KindUnknown
		return Halt("unsupported message type")
	}

	return Continue()
}

// classifyParseError maps a text.ParseError's kind to the stable notice
// vocabulary, falling back to the generic format message for any other
// error (including structural envelope faults raised outside the string
// scanner).
func classifyParseError(err error) string {
	pe, ok := err.(*text.ParseError)
	if !ok {
		return "invalid message format"
	}
	switch pe.Kind {
	case text.UnsupportedEscape:
		return "invalid message: unsupported JSON escape"
	case text.UnsupportedLiteral:
		return "invalid message: unsupported JSON literal control"
	default:
		return "invalid message format"
	}
}
