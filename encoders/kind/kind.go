// Package kind classifies nostr event kinds into the regular / replaceable /
// ephemeral / parameterized-replaceable classes that drive the store's
// collapse and query-visibility rules (spec §3).
package kind

import "strconv"

// T is a nostr event kind number.
type T struct{ K uint16 }

// New constructs a T.
func New(k int) *T { return &T{uint16(k)} }

// Well-known kinds referenced directly by the pipeline and store policy.
var (
	Metadata  = New(0)
	TextNote  = New(1)
	Follows   = New(3)
	Deletion  = New(5)
	AuthEvent = New(22242)
)

// Equal reports whether two kinds are the same number.
func (k *T) Equal(o *T) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.K == o.K
}

// IsReplaceable reports whether k collapses on (pubkey, kind): kind 0, 3,
// or 10000..19999.
func (k *T) IsReplaceable() bool {
	return k.K == 0 || k.K == 3 || (k.K >= 10000 && k.K <= 19999)
}

// IsEphemeral reports whether k is excluded from all read queries:
// 20000..29999.
func (k *T) IsEphemeral() bool {
	return k.K >= 20000 && k.K <= 29999
}

// IsParameterizedReplaceable reports whether k collapses on
// (pubkey, kind, d-tag): 30000..39999.
func (k *T) IsParameterizedReplaceable() bool {
	return k.K >= 30000 && k.K <= 39999
}

// IsPrivileged reports whether events of this kind should only be
// delivered to their author or an explicitly mentioned recipient, the
// way direct-message and gift-wrap kinds are (NIP-04/17/59 style kinds).
func (k *T) IsPrivileged() bool {
	switch k.K {
	case 4, 1059, 1060:
		return true
	default:
		return false
	}
}

// Name returns a human-readable label for logging.
func (k *T) Name() string {
	switch k.K {
	case 0:
		return "metadata"
	case 1:
		return "text_note"
	case 3:
		return "follows"
	case 5:
		return "deletion"
	case 22242:
		return "auth"
	default:
		return "kind:" + strconv.Itoa(int(k.K))
	}
}

// Marshal appends the decimal kind number to dst.
func (k *T) Marshal(dst []byte) []byte {
	return strconv.AppendInt(dst, int64(k.K), 10)
}

// Unmarshal parses a leading decimal integer from r into k.
func (k *T) Unmarshal(r []byte) (rest []byte, err error) {
	i := 0
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		i++
	}
	if i == 0 {
		return r, errInvalidKind(r)
	}
	var v int64
	if v, err = strconv.ParseInt(string(r[:i]), 10, 64); err != nil {
		return r, err
	}
	k.K = uint16(v)
	return r[i:], nil
}

func errInvalidKind(r []byte) error { return &invalidKindError{r} }

type invalidKindError struct{ r []byte }

func (e *invalidKindError) Error() string {
	return "expected decimal kind, got: " + string(e.r)
}
