// Package tag implements the nostr tag array: a Tag is itself an array of
// strings, and an event's tags are an array of Tag. This consolidates the
// teacher's separate tag and tags packages, since every operation on a Tag
// (find key, get value) is only ever used in the context of a Tags slice.
package tag

import "corvid.dev/encoders/text"

// T is a single tag: an ordered list of string fields. By convention field
// 0 is the tag key ("e", "p", "d", "a", ...) and field 1 is its primary
// value.
type T struct{ Field [][]byte }

// New builds a Tag from the given fields.
func New(fields ...[]byte) *T { return &T{Field: fields} }

// NewFromStrings builds a Tag from string fields.
func NewFromStrings(fields ...string) *T {
	f := make([][]byte, len(fields))
	for i, s := range fields {
		f[i] = []byte(s)
	}
	return &T{Field: f}
}

// Key returns field 0, the tag's key, or nil if the tag is empty.
func (t *T) Key() []byte {
	if t == nil || len(t.Field) == 0 {
		return nil
	}
	return t.Field[0]
}

// Value returns field 1, the tag's primary value, or nil if absent.
func (t *T) Value() []byte {
	if t == nil || len(t.Field) < 2 {
		return nil
	}
	return t.Field[1]
}

// Len returns the number of fields.
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Field)
}

// Get returns field i, or nil if out of range.
func (t *T) Get(i int) []byte {
	if t == nil || i < 0 || i >= len(t.Field) {
		return nil
	}
	return t.Field[i]
}

// Clone returns a deep copy of t.
func (t *T) Clone() *T {
	if t == nil {
		return nil
	}
	f := make([][]byte, len(t.Field))
	for i, v := range t.Field {
		cp := make([]byte, len(v))
		copy(cp, v)
		f[i] = cp
	}
	return &T{Field: f}
}

// Marshal appends the tag as a JSON array of strings to dst.
func (t *T) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, f := range t.Field {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = text.AppendQuote(dst, f, text.NostrEscape)
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal parses a JSON array of strings into t, returning the
// remainder of r after the closing bracket.
func (t *T) Unmarshal(r []byte) (rest []byte, err error) {
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != '[' {
		return r, errExpected(r, '[')
	}
	r = r[1:]
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == ']' {
		return r[1:], nil
	}
	for {
		r = text.SkipWhitespace(r)
		var field []byte
		if field, r, err = text.UnmarshalQuoted(r); err != nil {
			return r, err
		}
		t.Field = append(t.Field, field)
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return r, errExpected(r, ',')
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		if r[0] == ']' {
			return r[1:], nil
		}
		return r, errExpected(r, ']')
	}
}

func errExpected(r []byte, c byte) error {
	return &unmarshalError{r, c}
}

type unmarshalError struct {
	r []byte
	c byte
}

func (e *unmarshalError) Error() string {
	return "expected '" + string(e.c) + "' in tag array"
}

// Tags is an ordered list of tags.
type Tags struct{ T []*T }

// NewTags builds a Tags from the given tags.
func NewTags(ts ...*T) *Tags { return &Tags{T: ts} }

// Len returns the number of tags.
func (ts *Tags) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.T)
}

// GetFirst returns the first tag whose key equals key, or nil.
func (ts *Tags) GetFirst(key []byte) *T {
	if ts == nil {
		return nil
	}
	for _, t := range ts.T {
		if bytesEqual(t.Key(), key) {
			return t
		}
	}
	return nil
}

// GetAll returns every tag whose key equals key.
func (ts *Tags) GetAll(key []byte) []*T {
	if ts == nil {
		return nil
	}
	var out []*T
	for _, t := range ts.T {
		if bytesEqual(t.Key(), key) {
			out = append(out, t)
		}
	}
	return out
}

// Append adds a tag to the end of ts.
func (ts *Tags) Append(t *T) { ts.T = append(ts.T, t) }

// Clone returns a deep copy of ts.
func (ts *Tags) Clone() *Tags {
	if ts == nil {
		return nil
	}
	out := make([]*T, len(ts.T))
	for i, t := range ts.T {
		out[i] = t.Clone()
	}
	return &Tags{T: out}
}

// Marshal appends ts as a JSON array of tag arrays to dst.
func (ts *Tags) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, t := range ts.T {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = t.Marshal(dst)
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal parses a JSON array of tag arrays into ts.
func (ts *Tags) Unmarshal(r []byte) (rest []byte, err error) {
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != '[' {
		return r, errExpected(r, '[')
	}
	r = r[1:]
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == ']' {
		return r[1:], nil
	}
	for {
		r = text.SkipWhitespace(r)
		tg := &T{}
		if r, err = tg.Unmarshal(r); err != nil {
			return r, err
		}
		ts.T = append(ts.T, tg)
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return r, errExpected(r, ',')
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		if r[0] == ']' {
			return r[1:], nil
		}
		return r, errExpected(r, ']')
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
