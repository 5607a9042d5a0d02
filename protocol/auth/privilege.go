package auth

import (
	"bytes"

	"corvid.dev/encoders/event"
	"corvid.dev/encoders/hex"
)

// pTagKey is the mention-tag key used to designate an additional recipient
// of a privileged event (NIP-04/NIP-44 DMs, NIP-59 gift wraps).
var pTagKey = []byte("p")

// CheckPrivilege reports whether authedPubkey may see ev. Non-privileged
// events always pass. A privileged event is visible only to its author or
// to a pubkey named in one of its "p" tags; an unauthenticated caller
// (authedPubkey of length zero) never passes, since neither check could
// succeed.
func CheckPrivilege(authedPubkey []byte, ev *event.E) bool {
	if !ev.Kind.IsPrivileged() {
		return true
	}
	if len(authedPubkey) == 0 {
		return false
	}
	if bytes.Equal(ev.Pubkey, authedPubkey) {
		return true
	}
	hexAuthed := []byte(hex.Enc(authedPubkey))
	for _, t := range ev.Tags.GetAll(pTagKey) {
		if bytes.Equal(t.Value(), hexAuthed) {
			return true
		}
	}
	return false
}
