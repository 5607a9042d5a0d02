// Package schnorr wraps BIP-340 Schnorr signing and verification over
// secp256k1 x-only public keys, the signature scheme nostr events are
// signed with.
package schnorr

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"corvid.dev/errorf"
)

const (
	// PubKeyBytesLen is the length of an x-only public key.
	PubKeyBytesLen = 32
	// SignatureSize is the length of a Schnorr signature.
	SignatureSize = 64
)

// Verify checks a 64-byte Schnorr signature over a 32-byte message hash
// against a 32-byte x-only public key.
func Verify(sig, msgHash, pubkey []byte) (ok bool, err error) {
	if len(sig) != SignatureSize {
		return false, errorf.E(
			"invalid signature length, require %d got %d", SignatureSize,
			len(sig),
		)
	}
	if len(pubkey) != PubKeyBytesLen {
		return false, errorf.E(
			"invalid pubkey length, require %d got %d", PubKeyBytesLen,
			len(pubkey),
		)
	}
	var pk *btcec.PublicKey
	if pk, err = schnorr.ParsePubKey(pubkey); err != nil {
		return false, errorf.E("invalid pubkey: %w", err)
	}
	var s *schnorr.Signature
	if s, err = schnorr.ParseSignature(sig); err != nil {
		return false, errorf.E("invalid signature encoding: %w", err)
	}
	return s.Verify(msgHash, pk), nil
}

// GenerateKeypair creates a secp256k1 secret key and its x-only public key,
// for use in tests and key-generation tooling.
func GenerateKeypair() (sec []byte, pub []byte, err error) {
	var priv *btcec.PrivateKey
	if priv, err = btcec.NewPrivateKey(); err != nil {
		return nil, nil, err
	}
	sec = priv.Serialize()
	pub = schnorr.SerializePubKey(priv.PubKey())
	return
}

// Sign produces a 64-byte Schnorr signature over msgHash with the given
// 32-byte secret key; used by test fixtures to mint valid events.
func Sign(msgHash, sec []byte) (sig []byte, err error) {
	priv, _ := btcec.PrivKeyFromBytes(sec)
	var s *schnorr.Signature
	if s, err = schnorr.Sign(priv, msgHash); err != nil {
		return nil, err
	}
	return s.Serialize(), nil
}

// PubkeyFromSecret derives the x-only public key for a 32-byte secret key.
func PubkeyFromSecret(sec []byte) (pub []byte) {
	priv, pubkey := btcec.PrivKeyFromBytes(sec)
	_ = priv
	return schnorr.SerializePubKey(pubkey)
}
