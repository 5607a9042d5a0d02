package envelope

import (
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/text"
	"corvid.dev/errorf"
)

// OK is the relay-to-client `["OK", <event_id>, <true|false>, <message>]`
// acknowledgement of an EVENT submission.
type OK struct {
	Id      []byte
	Ok      bool
	Message string
}

func NewOK(id []byte, ok bool, message string) *OK {
	return &OK{Id: id, Ok: ok, Message: message}
}

func (e *OK) Label() string { return LOK }

func (e *OK) Marshal(dst []byte) []byte {
	dst = open(dst, LOK)
	dst = text.AppendQuote(dst, e.Id, hex.EncAppend)
	dst = append(dst, ',')
	if e.Ok {
		dst = append(dst, 't', 'r', 'u', 'e')
	} else {
		dst = append(dst, 'f', 'a', 'l', 's', 'e')
	}
	dst = append(dst, ',')
	dst = text.AppendQuote(dst, []byte(e.Message), text.NostrEscape)
	return closeArray(dst)
}

func (e *OK) Unmarshal(r []byte) (rest []byte, err error) {
	r = text.SkipWhitespace(r)
	if e.Id, r, err = text.UnmarshalHex(r); err != nil {
		return r, err
	}
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != ',' {
		return r, errorf.E("expected ',' after OK event id")
	}
	r = text.SkipWhitespace(r[1:])
	switch {
	case len(r) >= 4 && string(r[:4]) == "true":
		e.Ok = true
		r = r[4:]
	case len(r) >= 5 && string(r[:5]) == "false":
		e.Ok = false
		r = r[5:]
	default:
		return r, errorf.E("expected boolean in OK envelope")
	}
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == ',' {
		r = text.SkipWhitespace(r[1:])
		var msg []byte
		if msg, r, err = text.UnmarshalQuoted(r); err != nil {
			return r, err
		}
		e.Message = string(msg)
	}
	return skipToEnd(r)
}
