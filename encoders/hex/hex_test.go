package hex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncDec(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	s := Enc(raw)
	assert.Equal(t, "deadbeef", s)
	dec, err := Dec(s)
	assert.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestEncAppend(t *testing.T) {
	dst := []byte("prefix:")
	dst = EncAppend(dst, []byte{0x01, 0x02})
	assert.Equal(t, "prefix:0102", string(dst))
}

func TestDecBytes(t *testing.T) {
	dst := make([]byte, 2)
	n, err := DecBytes(dst, []byte("aabb"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0xaa, 0xbb}, dst)
}

func TestDecInvalid(t *testing.T) {
	_, err := Dec("not-hex")
	assert.Error(t, err)
}
