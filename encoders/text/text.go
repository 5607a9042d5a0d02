// Package text implements the hand-rolled JSON string scanning used by the
// wire codec. It exists instead of encoding/json because the parser
// contract (spec §4.1) requires distinguishing three different kinds of
// malformed input - an unsupported escape sequence, a raw control
// character, and any other syntactic fault - which encoding/json collapses
// into one opaque error.
package text

import (
	"unicode/utf8"

	"corvid.dev/encoders/hex"
)

// ParseErrorKind classifies why a JSON string failed to parse.
type ParseErrorKind int

const (
	// InvalidFormat covers any syntactic fault other than the two below:
	// missing quotes, truncated input, bad structural tokens.
	InvalidFormat ParseErrorKind = iota
	// UnsupportedEscape is a `\X` sequence where X is not one of the
	// allowed escapes (" \ n r t b f u), or a `\uXXXX` below 0x20.
	UnsupportedEscape
	// UnsupportedLiteral is a raw byte below 0x20 appearing unescaped
	// inside a JSON string.
	UnsupportedLiteral
)

// ParseError is the structured error returned by the string scanner so
// callers (the envelope codec) can map it to the correct NOTICE text.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string { return e.Msg }

func errFormat(msg string) error  { return &ParseError{InvalidFormat, msg} }
func errEscape(msg string) error  { return &ParseError{UnsupportedEscape, msg} }
func errLiteral(msg string) error { return &ParseError{UnsupportedLiteral, msg} }

// JSONKey appends `"key":` to dst.
func JSONKey(dst, key []byte) []byte {
	dst = append(dst, '"')
	dst = append(dst, key...)
	dst = append(dst, '"', ':')
	return dst
}

// Escaper renders src into the body of a JSON string (without the
// surrounding quotes) appended to dst.
type Escaper func(dst, src []byte) []byte

// AppendQuote wraps src in quotes, running it through escape first.
func AppendQuote(dst, src []byte, escape Escaper) []byte {
	dst = append(dst, '"')
	dst = escape(dst, src)
	dst = append(dst, '"')
	return dst
}

// NostrEscape renders raw content bytes as an escaped JSON string body,
// per the canonical serialization rules event ids are hashed over: only
// the minimal required characters are escaped.
func NostrEscape(dst, src []byte) []byte {
	for _, c := range src {
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0')
				dst = append(dst, hexDigit(c>>4), hexDigit(c&0xf))
				continue
			}
			dst = append(dst, c)
		}
	}
	return dst
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}

// UnmarshalQuoted parses a JSON-quoted string starting at the opening
// quote of r, returning the decoded content and the remainder after the
// closing quote.
func UnmarshalQuoted(r []byte) (content, rest []byte, err error) {
	if len(r) == 0 || r[0] != '"' {
		return nil, r, errFormat("expected '\"' to begin string")
	}
	r = r[1:]
	for len(r) > 0 {
		c := r[0]
		switch {
		case c == '"':
			return content, r[1:], nil
		case c == '\\':
			if len(r) < 2 {
				return nil, r, errFormat("truncated escape sequence")
			}
			switch r[1] {
			case '"':
				content = append(content, '"')
				r = r[2:]
			case '\\':
				content = append(content, '\\')
				r = r[2:]
			case 'n':
				content = append(content, '\n')
				r = r[2:]
			case 'r':
				content = append(content, '\r')
				r = r[2:]
			case 't':
				content = append(content, '\t')
				r = r[2:]
			case 'b':
				content = append(content, '\b')
				r = r[2:]
			case 'f':
				content = append(content, '\f')
				r = r[2:]
			case 'u':
				if len(r) < 6 {
					return nil, r, errFormat("truncated unicode escape")
				}
				cp, ok := parseHex4(r[2:6])
				if !ok {
					return nil, r, errEscape(
						"invalid \\u escape: " + string(r[:6]),
					)
				}
				if cp < 0x20 {
					return nil, r, errEscape(
						"\\u escape below 0x20 is not a supported escape",
					)
				}
				var buf [4]byte
				n := utf8.EncodeRune(buf[:], rune(cp))
				content = append(content, buf[:n]...)
				r = r[6:]
			default:
				return nil, r, errEscape(
					"unsupported escape sequence: \\" + string(r[1]),
				)
			}
		case c < 0x20:
			return nil, r, errLiteral(
				"raw control character in string literal",
			)
		default:
			content = append(content, c)
			r = r[1:]
		}
	}
	return nil, r, errFormat("unterminated string")
}

func parseHex4(b []byte) (v int, ok bool) {
	if len(b) != 4 {
		return 0, false
	}
	for _, c := range b {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= int(c - '0')
		case c >= 'a' && c <= 'f':
			v |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= int(c-'A') + 10
		default:
			return 0, false
		}
	}
	return v, true
}

// UnmarshalHex parses a JSON-quoted hex string into decoded bytes.
func UnmarshalHex(r []byte) (out, rest []byte, err error) {
	var s []byte
	if s, rest, err = UnmarshalQuoted(r); err != nil {
		return nil, r, err
	}
	out = make([]byte, len(s)/2)
	var n int
	if n, err = hex.DecBytes(out, s); err != nil {
		return nil, r, errFormat("invalid hex content: " + err.Error())
	}
	return out[:n], rest, nil
}

// SkipWhitespace advances past JSON whitespace.
func SkipWhitespace(r []byte) []byte {
	for len(r) > 0 && isWS(r[0]) {
		r = r[1:]
	}
	return r
}

func isWS(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
