package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNostrEscapeRoundtrip(t *testing.T) {
	src := []byte("hello \"world\"\n\t\\")
	quoted := AppendQuote(nil, src, NostrEscape)
	content, rest, err := UnmarshalQuoted(quoted)
	assert.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, src, content)
}

func TestUnmarshalQuotedUnicodeEscape(t *testing.T) {
	content, rest, err := UnmarshalQuoted([]byte(`"caf\` + `u00e9"`))
	assert.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, "café", string(content))
}

func TestUnmarshalQuotedUnsupportedEscape(t *testing.T) {
	_, _, err := UnmarshalQuoted([]byte(`"bad\x"`))
	assert.Error(t, err)
	pe, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, UnsupportedEscape, pe.Kind)
}

func TestUnmarshalQuotedUnsupportedLiteral(t *testing.T) {
	raw := append([]byte(`"`), 0x01)
	raw = append(raw, '"')
	_, _, err := UnmarshalQuoted(raw)
	assert.Error(t, err)
	pe, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, UnsupportedLiteral, pe.Kind)
}

func TestUnmarshalQuotedInvalidFormat(t *testing.T) {
	_, _, err := UnmarshalQuoted([]byte(`not-quoted`))
	assert.Error(t, err)
	pe, ok := err.(*ParseError)
	assert.True(t, ok)
	assert.Equal(t, InvalidFormat, pe.Kind)

	_, _, err = UnmarshalQuoted([]byte(`"unterminated`))
	assert.Error(t, err)
}

func TestUnmarshalHex(t *testing.T) {
	out, rest, err := UnmarshalHex([]byte(`"deadbeef",x`))
	assert.NoError(t, err)
	assert.Equal(t, ",x", string(rest))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out)
}

func TestSkipWhitespace(t *testing.T) {
	assert.Equal(t, []byte("x"), SkipWhitespace([]byte("  \t\n x")))
}
