// Package event implements the nostr event: the wire JSON codec, the
// canonical serialization its id is hashed over, and Schnorr signing and
// verification.
package event

import (
	"bytes"

	"github.com/minio/sha256-simd"
	"lukechampine.com/frand"

	"corvid.dev/chk"
	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/text"
	"corvid.dev/encoders/timestamp"
	"corvid.dev/errorf"
)

// E is a nostr event.
type E struct {
	// Id is the sha256 hash of the canonical serialization.
	Id []byte
	// Pubkey is the 32-byte x-only public key of the creator.
	Pubkey []byte
	// CreatedAt is the creator's claimed timestamp; never trusted alone.
	CreatedAt *timestamp.T
	// Kind selects the event's semantics and its store collapse class.
	Kind *kind.T
	// Tags carries the event's tag array.
	Tags *tag.Tags
	// Content is the arbitrary payload.
	Content []byte
	// Sig is the 64-byte Schnorr signature over Id.
	Sig []byte
}

// New returns an empty event ready for population.
func New() *E { return &E{} }

// Signer mints signatures; implemented by a held secret key or a remote
// signing device. Kept minimal so test fixtures and future NIP-46 remote
// signers share the same seam.
type Signer interface {
	Pub() []byte
	Sign(msg []byte) ([]byte, error)
}

// Secret is the simplest Signer: a secp256k1 secret key held in memory.
type Secret struct {
	Sec []byte
	pub []byte
}

// NewSecret derives the public key for a held secret key.
func NewSecret(sec []byte) *Secret {
	return &Secret{Sec: sec, pub: schnorr.PubkeyFromSecret(sec)}
}

func (s *Secret) Pub() []byte { return s.pub }

func (s *Secret) Sign(msg []byte) ([]byte, error) { return schnorr.Sign(msg, s.Sec) }

// GetIDHash computes the sha256 of the canonical serialization
// [0,pubkey,created_at,kind,tags,content], the value every event id and
// signature is computed over (NIP-01).
func (ev *E) GetIDHash() []byte {
	h := sha256.Sum256(ev.ToCanonical(nil))
	return h[:]
}

// ToCanonical appends the canonical array form of ev to dst.
func (ev *E) ToCanonical(dst []byte) []byte {
	dst = append(dst, '[', '0', ',')
	dst = text.AppendQuote(dst, ev.Pubkey, hex.EncAppend)
	dst = append(dst, ',')
	dst = ev.CreatedAt.Marshal(dst)
	dst = append(dst, ',')
	dst = ev.Kind.Marshal(dst)
	dst = append(dst, ',')
	dst = ev.Tags.Marshal(dst)
	dst = append(dst, ',')
	dst = text.AppendQuote(dst, ev.Content, text.NostrEscape)
	dst = append(dst, ']')
	return dst
}

// Sign populates Pubkey, Id and Sig from the signer. The caller must set
// CreatedAt, Kind, Tags and Content first.
func (ev *E) Sign(s Signer) (err error) {
	ev.Pubkey = s.Pub()
	ev.Id = ev.GetIDHash()
	if ev.Sig, err = s.Sign(ev.Id); chk.E(err) {
		return
	}
	return
}

// Verify checks that Sig is a valid signature by Pubkey over Id, and that
// Id actually matches the canonical hash of the event's content.
func (ev *E) Verify() (valid bool, err error) {
	id := ev.GetIDHash()
	if !bytes.Equal(id, ev.Id) {
		return false, errorf.E("event id does not match canonical hash")
	}
	if valid, err = schnorr.Verify(ev.Sig, ev.Id, ev.Pubkey); chk.T(err) {
		return
	}
	return
}

// IdString returns the hex-encoded event id.
func (ev *E) IdString() string { return hex.Enc(ev.Id) }

// PubkeyString returns the hex-encoded pubkey.
func (ev *E) PubkeyString() string { return hex.Enc(ev.Pubkey) }

// SigString returns the hex-encoded signature.
func (ev *E) SigString() string { return hex.Enc(ev.Sig) }

// Clone returns a deep copy of ev.
func (ev *E) Clone() *E {
	if ev == nil {
		return nil
	}
	cp := &E{
		Id:        append([]byte(nil), ev.Id...),
		Pubkey:    append([]byte(nil), ev.Pubkey...),
		CreatedAt: timestamp.FromUnix(ev.CreatedAt.I64()),
		Kind:      kind.New(int(ev.Kind.K)),
		Tags:      ev.Tags.Clone(),
		Content:   append([]byte(nil), ev.Content...),
		Sig:       append([]byte(nil), ev.Sig...),
	}
	return cp
}

// S is a slice of events that sorts newest-first (created_at descending,
// ties broken by the lowest lexicographic id), the order replay queries
// and replaceable-collapse winners are compared in.
type S []*E

func (s S) Len() int      { return len(s) }
func (s S) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s S) Less(i, j int) bool {
	ci, cj := s[i].CreatedAt.I64(), s[j].CreatedAt.I64()
	if ci != cj {
		return ci > cj
	}
	return bytes.Compare(s[i].Id, s[j].Id) < 0
}

// GenerateRandomTextNoteEvent builds and signs a kind-1 event with random
// content, for use in tests and load-generation fixtures.
func GenerateRandomTextNoteEvent(s Signer, maxSize int) (ev *E, err error) {
	l := frand.Intn(maxSize*6/8 + 1)
	ev = &E{
		Kind:      kind.TextNote,
		CreatedAt: timestamp.Now(),
		Content:   text.NostrEscape(nil, frand.Bytes(l)),
		Tags:      tag.NewTags(),
	}
	if err = ev.Sign(s); chk.E(err) {
		return
	}
	return
}
