package envelope

import (
	"corvid.dev/encoders/text"
)

// Close is the client-to-relay `["CLOSE", <subscription_id>]` message
// cancelling a subscription.
type Close struct{ Subscription string }

func NewClose(sub string) *Close { return &Close{Subscription: sub} }

func (e *Close) Label() string { return LClose }

func (e *Close) Marshal(dst []byte) []byte {
	dst = open(dst, LClose)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	return closeArray(dst)
}

func (e *Close) Unmarshal(r []byte) (rest []byte, err error) {
	var sub []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	return skipToEnd(r)
}

// Closed is the relay-to-client `["CLOSED", <subscription_id>, <message>]`
// message ending a subscription server-side, optionally with a reason.
type Closed struct {
	Subscription string
	Message      string
}

func NewClosed(sub, msg string) *Closed {
	return &Closed{Subscription: sub, Message: msg}
}

func (e *Closed) Label() string { return LClosed }

func (e *Closed) Marshal(dst []byte) []byte {
	dst = open(dst, LClosed)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	dst = append(dst, ',')
	dst = text.AppendQuote(dst, []byte(e.Message), text.NostrEscape)
	return closeArray(dst)
}

func (e *Closed) Unmarshal(r []byte) (rest []byte, err error) {
	var sub, msg []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == ',' {
		r = text.SkipWhitespace(r[1:])
		if msg, r, err = text.UnmarshalQuoted(r); err != nil {
			return r, err
		}
		e.Message = string(msg)
	}
	return skipToEnd(r)
}
