package envelope

import "corvid.dev/encoders/text"

// EOSE is the relay-to-client `["EOSE", <subscription_id>]` message
// marking the end of stored-event replay for a subscription.
type EOSE struct{ Subscription string }

func NewEOSE(sub string) *EOSE { return &EOSE{Subscription: sub} }

func (e *EOSE) Label() string { return LEOSE }

func (e *EOSE) Marshal(dst []byte) []byte {
	dst = open(dst, LEOSE)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	return closeArray(dst)
}

func (e *EOSE) Unmarshal(r []byte) (rest []byte, err error) {
	var sub []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	return skipToEnd(r)
}

// Notice is the relay-to-client `["NOTICE", <message>]` message, a
// free-form human-readable string.
type Notice struct{ Message string }

func NewNotice(msg string) *Notice { return &Notice{Message: msg} }

func (e *Notice) Label() string { return LNotice }

func (e *Notice) Marshal(dst []byte) []byte {
	dst = open(dst, LNotice)
	dst = text.AppendQuote(dst, []byte(e.Message), text.NostrEscape)
	return closeArray(dst)
}

func (e *Notice) Unmarshal(r []byte) (rest []byte, err error) {
	var msg []byte
	r = text.SkipWhitespace(r)
	if msg, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Message = string(msg)
	return skipToEnd(r)
}
