package event

import (
	"bytes"
	"io"

	"github.com/minio/sha256-simd"

	"corvid.dev/chk"
	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/text"
	"corvid.dev/encoders/timestamp"
	"corvid.dev/errorf"
)

var (
	jId        = []byte("id")
	jPubkey    = []byte("pubkey")
	jCreatedAt = []byte("created_at")
	jKind      = []byte("kind")
	jTags      = []byte("tags")
	jContent   = []byte("content")
	jSig       = []byte("sig")
)

// Marshal appends ev's minified JSON encoding to dst.
func (ev *E) Marshal(dst []byte) []byte {
	return ev.MarshalWithWhitespace(dst, false)
}

// MarshalWithWhitespace appends ev's JSON encoding to dst, optionally
// indented for human inspection.
func (ev *E) MarshalWithWhitespace(dst []byte, on bool) []byte {
	dst = append(dst, '{')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jId)
	if on {
		dst = append(dst, ' ')
	}
	dst = text.AppendQuote(dst, ev.Id, hex.EncAppend)
	dst = append(dst, ',')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jPubkey)
	if on {
		dst = append(dst, ' ')
	}
	dst = text.AppendQuote(dst, ev.Pubkey, hex.EncAppend)
	dst = append(dst, ',')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jCreatedAt)
	if on {
		dst = append(dst, ' ')
	}
	dst = ev.CreatedAt.Marshal(dst)
	dst = append(dst, ',')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jKind)
	if on {
		dst = append(dst, ' ')
	}
	dst = ev.Kind.Marshal(dst)
	dst = append(dst, ',')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jTags)
	if on {
		dst = append(dst, ' ')
	}
	dst = ev.Tags.Marshal(dst)
	dst = append(dst, ',')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jContent)
	if on {
		dst = append(dst, ' ')
	}
	dst = text.AppendQuote(dst, ev.Content, text.NostrEscape)
	dst = append(dst, ',')
	if on {
		dst = append(dst, '\n', '\t')
	}
	dst = text.JSONKey(dst, jSig)
	if on {
		dst = append(dst, ' ')
	}
	dst = text.AppendQuote(dst, ev.Sig, hex.EncAppend)
	if on {
		dst = append(dst, '\n')
	}
	dst = append(dst, '}')
	return dst
}

// Unmarshal parses a JSON event object from b into ev, returning the
// remainder after the closing brace. It accepts both minified and
// whitespace-formatted input.
func (ev *E) Unmarshal(b []byte) (r []byte, err error) {
	key := make([]byte, 0, 10)
	r = b
	for ; len(r) > 0; r = r[1:] {
		if isWS(r[0]) {
			continue
		}
		if r[0] == '{' {
			r = r[1:]
			goto BetweenKeys
		}
	}
	goto eof
BetweenKeys:
	for ; len(r) > 0; r = r[1:] {
		if isWS(r[0]) {
			continue
		}
		if r[0] == '"' {
			r = r[1:]
			goto InKey
		}
		if r[0] == '}' {
			r = r[1:]
			return
		}
	}
	goto eof
InKey:
	for ; len(r) > 0; r = r[1:] {
		if r[0] == '"' {
			r = r[1:]
			goto InKV
		}
		key = append(key, r[0])
	}
	goto eof
InKV:
	for ; len(r) > 0; r = r[1:] {
		if isWS(r[0]) {
			continue
		}
		if r[0] == ':' {
			r = r[1:]
			goto InVal
		}
	}
	goto eof
InVal:
	for len(r) > 0 && isWS(r[0]) {
		r = r[1:]
	}
	if len(key) == 0 {
		goto invalid
	}
	switch key[0] {
	case jId[0]:
		if !bytes.Equal(jId, key) {
			goto invalid
		}
		var id []byte
		if id, r, err = text.UnmarshalHex(r); chk.E(err) {
			return
		}
		if len(id) != sha256.Size {
			err = errorf.E("invalid id length, require %d got %d", sha256.Size, len(id))
			return
		}
		ev.Id = id
		goto BetweenKV
	case jPubkey[0]:
		if !bytes.Equal(jPubkey, key) {
			goto invalid
		}
		var pk []byte
		if pk, r, err = text.UnmarshalHex(r); chk.E(err) {
			return
		}
		if len(pk) != schnorr.PubKeyBytesLen {
			err = errorf.E(
				"invalid pubkey length, require %d got %d",
				schnorr.PubKeyBytesLen, len(pk),
			)
			return
		}
		ev.Pubkey = pk
		goto BetweenKV
	case jKind[0]:
		if !bytes.Equal(jKind, key) {
			goto invalid
		}
		ev.Kind = kind.New(0)
		if r, err = ev.Kind.Unmarshal(r); chk.E(err) {
			return
		}
		goto BetweenKV
	case jTags[0]:
		if !bytes.Equal(jTags, key) {
			goto invalid
		}
		ev.Tags = &tag.Tags{}
		if r, err = ev.Tags.Unmarshal(r); chk.E(err) {
			return
		}
		goto BetweenKV
	case jSig[0]:
		if !bytes.Equal(jSig, key) {
			goto invalid
		}
		var sig []byte
		if sig, r, err = text.UnmarshalHex(r); chk.E(err) {
			return
		}
		if len(sig) != schnorr.SignatureSize {
			err = errorf.E(
				"invalid sig length, require %d got %d",
				schnorr.SignatureSize, len(sig),
			)
			return
		}
		ev.Sig = sig
		goto BetweenKV
	case jContent[0]:
		if len(key) > 1 && key[1] == jCreatedAt[1] {
			if !bytes.Equal(jCreatedAt, key) {
				goto invalid
			}
			ev.CreatedAt = timestamp.New(0)
			if r, err = ev.CreatedAt.Unmarshal(r); chk.E(err) {
				return
			}
			goto BetweenKV
		}
		if !bytes.Equal(jContent, key) {
			goto invalid
		}
		if ev.Content, r, err = text.UnmarshalQuoted(r); chk.T(err) {
			return
		}
		goto BetweenKV
	default:
		goto invalid
	}
BetweenKV:
	key = key[:0]
	for ; len(r) > 0; r = r[1:] {
		if isWS(r[0]) {
			continue
		}
		switch {
		case r[0] == '}':
			r = r[1:]
			return
		case r[0] == ',':
			r = r[1:]
			goto BetweenKeys
		case r[0] == '"':
			r = r[1:]
			goto InKey
		}
	}
	goto eof
invalid:
	err = errorf.E("invalid event json at: '%s'", string(r))
	return
eof:
	err = io.ErrUnexpectedEOF
	return
}

func isWS(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
