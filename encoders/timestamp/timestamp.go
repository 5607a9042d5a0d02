// Package timestamp wraps the event and filter created_at/since/until
// fields, which are unix seconds on the wire but carried as a distinct
// type so callers can't accidentally mix them up with other integers.
package timestamp

import (
	"strconv"
	"time"
)

// T is a unix-second timestamp.
type T struct{ V int64 }

// Now returns the current time as a T.
func Now() *T { return &T{time.Now().Unix()} }

// FromUnix builds a T from a unix-second integer.
func FromUnix(i int64) *T { return &T{i} }

// New is an alias of FromUnix kept for symmetry with the other encoder
// constructors.
func New(i int64) *T { return &T{i} }

// I64 returns the timestamp as int64.
func (t *T) I64() int64 {
	if t == nil {
		return 0
	}
	return t.V
}

// Int is an alias of I64.
func (t *T) Int() int64 { return t.I64() }

// U64 returns the timestamp as uint64.
func (t *T) U64() uint64 {
	if t == nil {
		return 0
	}
	return uint64(t.V)
}

// Time returns the timestamp as a time.Time.
func (t *T) Time() time.Time { return time.Unix(t.I64(), 0).UTC() }

// Marshal appends the decimal unix timestamp to dst.
func (t *T) Marshal(dst []byte) []byte {
	return strconv.AppendInt(dst, t.I64(), 10)
}

// Unmarshal parses a leading decimal integer from r into t, returning the
// remainder.
func (t *T) Unmarshal(r []byte) (rest []byte, err error) {
	i := 0
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		i++
	}
	if i == 0 {
		return r, errInvalid(r)
	}
	var v int64
	if v, err = strconv.ParseInt(string(r[:i]), 10, 64); err != nil {
		return r, err
	}
	t.V = v
	return r[i:], nil
}

func errInvalid(r []byte) error {
	return &invalidTimestampError{r}
}

type invalidTimestampError struct{ r []byte }

func (e *invalidTimestampError) Error() string {
	return "expected decimal timestamp, got: " + string(e.r)
}
