package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/timestamp"
)

func newSigner(t *testing.T) Signer {
	sec, _, err := schnorr.GenerateKeypair()
	assert.NoError(t, err)
	return NewSecret(sec)
}

func TestSignVerifyRoundtrip(t *testing.T) {
	s := newSigner(t)
	ev := &E{
		Kind:      kind.TextNote,
		CreatedAt: timestamp.Now(),
		Tags:      tag.NewTags(),
		Content:   []byte("hello"),
	}
	assert.NoError(t, ev.Sign(s))
	assert.Len(t, ev.Id, 32)
	assert.Len(t, ev.Sig, 64)

	ok, err := ev.Verify()
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyDetectsTamperedContent(t *testing.T) {
	s := newSigner(t)
	ev := &E{
		Kind:      kind.TextNote,
		CreatedAt: timestamp.Now(),
		Tags:      tag.NewTags(),
		Content:   []byte("hello"),
	}
	assert.NoError(t, ev.Sign(s))
	ev.Content = []byte("tampered")
	_, err := ev.Verify()
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	s := newSigner(t)
	ev, err := GenerateRandomTextNoteEvent(s, 100)
	assert.NoError(t, err)
	cp := ev.Clone()
	cp.Content[0] = 'X'
	assert.NotEqual(t, ev.Content[0], cp.Content[0])
}

func TestSliceLessOrdersNewestFirstWithIdTiebreak(t *testing.T) {
	s1 := newSigner(t)
	ts := timestamp.FromUnix(1000)
	a := &E{Id: []byte{0x01}, CreatedAt: ts}
	b := &E{Id: []byte{0x02}, CreatedAt: ts}
	c := &E{Id: []byte{0x01}, CreatedAt: timestamp.FromUnix(2000)}

	list := S{a, b, c}
	// c is newest, then a before b by ascending id at the same timestamp.
	assert.True(t, list.Less(2, 0))
	assert.True(t, list.Less(0, 1))
	assert.False(t, list.Less(1, 0))
	_ = s1
}

func TestIdStringPubkeyStringSigString(t *testing.T) {
	s := newSigner(t)
	ev, err := GenerateRandomTextNoteEvent(s, 32)
	assert.NoError(t, err)
	assert.Len(t, ev.IdString(), 64)
	assert.Len(t, ev.PubkeyString(), 64)
	assert.Len(t, ev.SigString(), 128)
}
