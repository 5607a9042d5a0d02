// Package hex provides lowercase hex encode/decode helpers for the binary
// fields (ids, pubkeys, signatures) carried through the codec.
package hex

import "encoding/hex"

// Enc returns the lowercase hex encoding of b.
func Enc(b []byte) string { return hex.EncodeToString(b) }

// EncAppend appends the lowercase hex encoding of src to dst.
func EncAppend(dst, src []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, hex.EncodedLen(len(src)))...)
	hex.Encode(dst[start:], src)
	return dst
}

// Dec decodes a hex string into bytes.
func Dec(s string) ([]byte, error) { return hex.DecodeString(s) }

// DecBytes decodes hex-encoded src into dst, which must have capacity for
// the decoded length; it returns the number of bytes written.
func DecBytes(dst, src []byte) (n int, err error) {
	return hex.Decode(dst, src)
}
