package envelope

import (
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/text"
)

// AuthChallenge is the relay-to-client `["AUTH", <challenge>]` message
// carrying a relay-chosen random string clients must sign into a kind
// 22242 event to authenticate (NIP-42).
type AuthChallenge struct{ Challenge string }

func NewAuthChallenge(challenge string) *AuthChallenge {
	return &AuthChallenge{Challenge: challenge}
}

func (e *AuthChallenge) Label() string { return LAuth }

func (e *AuthChallenge) Marshal(dst []byte) []byte {
	dst = open(dst, LAuth)
	dst = text.AppendQuote(dst, []byte(e.Challenge), text.NostrEscape)
	return closeArray(dst)
}

func (e *AuthChallenge) Unmarshal(r []byte) (rest []byte, err error) {
	var c []byte
	r = text.SkipWhitespace(r)
	if c, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Challenge = string(c)
	return skipToEnd(r)
}

// AuthResponse is the client-to-relay `["AUTH", <event>]` message: the
// signed kind 22242 event proving control of a pubkey (NIP-42).
type AuthResponse struct{ Event *event.E }

func NewAuthResponse(ev *event.E) *AuthResponse { return &AuthResponse{Event: ev} }

func (e *AuthResponse) Label() string { return LAuth }

func (e *AuthResponse) Marshal(dst []byte) []byte {
	dst = open(dst, LAuth)
	dst = e.Event.Marshal(dst)
	return closeArray(dst)
}

func (e *AuthResponse) Unmarshal(r []byte) (rest []byte, err error) {
	e.Event = event.New()
	if rest, err = e.Event.Unmarshal(r); err != nil {
		return r, err
	}
	return skipToEnd(rest)
}
