package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"corvid.dev/encoders/event"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/timestamp"
)

func dmEvent(author, recipient []byte) *event.E {
	return &event.E{
		Kind:      kind.New(4),
		Pubkey:    author,
		CreatedAt: timestamp.Now(),
		Tags:      tag.NewTags(tag.NewFromStrings("p", hex.Enc(recipient))),
		Content:   []byte("ciphertext"),
	}
}

func TestCheckPrivilegeAllowsNonPrivilegedEventForAnyone(t *testing.T) {
	ev := &event.E{Kind: kind.TextNote, Pubkey: make([]byte, 32), Tags: tag.NewTags()}
	assert.True(t, CheckPrivilege(nil, ev))
	assert.True(t, CheckPrivilege(make([]byte, 32), ev))
}

func TestCheckPrivilegeAllowsAuthor(t *testing.T) {
	author := make([]byte, 32)
	author[0] = 0x01
	recipient := make([]byte, 32)
	recipient[0] = 0x02
	ev := dmEvent(author, recipient)

	assert.True(t, CheckPrivilege(author, ev))
}

func TestCheckPrivilegeAllowsTaggedRecipient(t *testing.T) {
	author := make([]byte, 32)
	author[0] = 0x01
	recipient := make([]byte, 32)
	recipient[0] = 0x02
	ev := dmEvent(author, recipient)

	assert.True(t, CheckPrivilege(recipient, ev))
}

func TestCheckPrivilegeRejectsStranger(t *testing.T) {
	author := make([]byte, 32)
	author[0] = 0x01
	recipient := make([]byte, 32)
	recipient[0] = 0x02
	stranger := make([]byte, 32)
	stranger[0] = 0x03
	ev := dmEvent(author, recipient)

	assert.False(t, CheckPrivilege(stranger, ev))
}

func TestCheckPrivilegeRejectsUnauthenticatedCaller(t *testing.T) {
	author := make([]byte, 32)
	author[0] = 0x01
	recipient := make([]byte, 32)
	recipient[0] = 0x02
	ev := dmEvent(author, recipient)

	assert.False(t, CheckPrivilege(nil, ev))
	assert.False(t, CheckPrivilege([]byte{}, ev))
}
