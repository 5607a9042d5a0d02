package schnorr

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	sec, pub, err := GenerateKeypair()
	assert.NoError(t, err)
	assert.Equal(t, PubKeyBytesLen, len(pub))

	msg := sha256.Sum256([]byte("hello nostr"))
	sig, err := Sign(msg[:], sec)
	assert.NoError(t, err)
	assert.Equal(t, SignatureSize, len(sig))

	ok, err := Verify(sig, msg[:], pub)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sec, _, err := GenerateKeypair()
	assert.NoError(t, err)
	_, otherPub, err := GenerateKeypair()
	assert.NoError(t, err)

	msg := sha256.Sum256([]byte("hello nostr"))
	sig, err := Sign(msg[:], sec)
	assert.NoError(t, err)

	ok, err := Verify(sig, msg[:], otherPub)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsBadLengths(t *testing.T) {
	_, err := verifyBadSig()
	assert.Error(t, err)
	_, err = verifyBadPub()
	assert.Error(t, err)
}

func verifyBadSig() (bool, error) {
	return Verify(make([]byte, 10), make([]byte, 32), make([]byte, 32))
}

func verifyBadPub() (bool, error) {
	return Verify(make([]byte, 64), make([]byte, 32), make([]byte, 10))
}

func TestPubkeyFromSecretMatchesGenerated(t *testing.T) {
	sec, pub, err := GenerateKeypair()
	assert.NoError(t, err)
	assert.Equal(t, pub, PubkeyFromSecret(sec))
}
