// Package envelope implements the NIP-01 (and NIP-42/NIP-45) message
// envelopes exchanged over the relay websocket: the outer
// `["LABEL", ...]` JSON array every client/relay message is wrapped in.
package envelope

import (
	"corvid.dev/encoders/text"
	"corvid.dev/errorf"
)

// Label identifies an envelope's wire type, the first element of its
// JSON array.
type Label = string

const (
	LEvent  Label = "EVENT"
	LReq    Label = "REQ"
	LClose  Label = "CLOSE"
	LClosed Label = "CLOSED"
	LOK     Label = "OK"
	LEOSE   Label = "EOSE"
	LNotice Label = "NOTICE"
	LAuth   Label = "AUTH"
	LCount  Label = "COUNT"
)

// I is implemented by every envelope type: it can render itself to the
// wire and parse itself back from it.
type I interface {
	Label() string
	Marshal(dst []byte) []byte
	Unmarshal(r []byte) (rest []byte, err error)
}

// Identify reads the label out of the leading `["LABEL",` of a message
// and returns it along with the remainder positioned at the start of the
// next array element.
func Identify(b []byte) (label string, rest []byte, err error) {
	r := text.SkipWhitespace(b)
	if len(r) == 0 || r[0] != '[' {
		return "", r, errorf.E("expected '[' to begin envelope")
	}
	r = text.SkipWhitespace(r[1:])
	var l []byte
	if l, r, err = text.UnmarshalQuoted(r); err != nil {
		// Returned unwrapped so callers can type-assert *text.ParseError
		// (see stage_protocol.go's classifyParseError) to recover the
		// stable notice vocabulary instead of falling back to a generic
		// message.
		return "", r, err
	}
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != ',' {
		return "", r, errorf.E("expected ',' after envelope label")
	}
	r = text.SkipWhitespace(r[1:])
	return string(l), r, nil
}

// open appends `["LABEL",` to dst, the common envelope preamble.
func open(dst []byte, label Label) []byte {
	dst = append(dst, '[', '"')
	dst = append(dst, label...)
	dst = append(dst, '"', ',')
	return dst
}

// closeArray appends the closing `]` of an envelope.
func closeArray(dst []byte) []byte { return append(dst, ']') }

// skipToEnd advances r past a trailing `]`, skipping only whitespace and
// commas before it and failing on anything else,
// used after an envelope's fields have parsed short of the array close -
// nested structures like filters may leave extra whitespace behind.
func skipToEnd(r []byte) ([]byte, error) {
	r = text.SkipWhitespace(r)
	for len(r) > 0 {
		if r[0] == ']' {
			return r[1:], nil
		}
		if r[0] == ',' {
			r = text.SkipWhitespace(r[1:])
			continue
		}
		return r, errorf.E("unexpected trailing data in envelope: '%s'", r)
	}
	return r, errorf.E("unterminated envelope")
}
