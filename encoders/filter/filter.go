// Package filter is a codec for nostr filters (subscription queries),
// including matching against events and a canonical form used to
// deduplicate and fingerprint identical filters.
package filter

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/minio/sha256-simd"
	"lukechampine.com/frand"

	"corvid.dev/chk"
	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/hex"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/text"
	"corvid.dev/encoders/timestamp"
	"corvid.dev/errorf"
)

// F is a nostr filter: a query against stored events and a live-match rule
// for the duration of the subscription that holds it.
//
// Field order carries no protocol meaning, but Marshal always renders the
// same set of fields in the same order so two filters with identical
// content produce byte-identical JSON - required for Fingerprint to
// deduplicate subscriptions.
type F struct {
	Ids     [][]byte
	Kinds   []*kind.T
	Authors [][]byte
	Tags    *tag.Tags
	Since   *timestamp.T
	Until   *timestamp.T
	Search  []byte
	Limit   *uint
}

// New returns an empty filter.
func New() *F { return &F{Tags: &tag.Tags{}} }

// Clone returns a deep copy of f, with Limit reset to 1 - a filter clone
// implicitly stands for one live subscription reference.
func (f *F) Clone() *F {
	one := uint(1)
	cp := &F{
		Ids:     cloneBytesSlice(f.Ids),
		Kinds:   append([]*kind.T(nil), f.Kinds...),
		Authors: cloneBytesSlice(f.Authors),
		Tags:    f.Tags.Clone(),
		Search:  append([]byte(nil), f.Search...),
		Limit:   &one,
	}
	if f.Since != nil {
		cp.Since = timestamp.FromUnix(f.Since.I64())
	}
	if f.Until != nil {
		cp.Until = timestamp.FromUnix(f.Until.I64())
	}
	return cp
}

func cloneBytesSlice(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i, v := range in {
		out[i] = append([]byte(nil), v...)
	}
	return out
}

var (
	kIds     = []byte("ids")
	kKinds   = []byte("kinds")
	kAuthors = []byte("authors")
	kSince   = []byte("since")
	kUntil   = []byte("until")
	kLimit   = []byte("limit")
	kSearch  = []byte("search")
)

// Marshal appends f's canonical JSON encoding to dst, sorting all fields
// first.
func (f *F) Marshal(dst []byte) []byte {
	f.Sort()
	dst = append(dst, '{')
	first := true
	sep := func() {
		if !first {
			dst = append(dst, ',')
		}
		first = false
	}
	if len(f.Ids) > 0 {
		sep()
		dst = text.JSONKey(dst, kIds)
		dst = marshalHexArray(dst, f.Ids)
	}
	if len(f.Kinds) > 0 {
		sep()
		dst = text.JSONKey(dst, kKinds)
		dst = append(dst, '[')
		for i, k := range f.Kinds {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = k.Marshal(dst)
		}
		dst = append(dst, ']')
	}
	if len(f.Authors) > 0 {
		sep()
		dst = text.JSONKey(dst, kAuthors)
		dst = marshalHexArray(dst, f.Authors)
	}
	if f.Tags.Len() > 0 {
		for _, tg := range f.Tags.T {
			if tg.Len() < 2 || len(tg.Key()) != 2 || tg.Key()[0] != '#' {
				continue
			}
			sep()
			dst = append(dst, '"', tg.Key()[0], tg.Key()[1], '"', ':', '[')
			for i := 1; i < tg.Len(); i++ {
				if i > 1 {
					dst = append(dst, ',')
				}
				dst = text.AppendQuote(dst, tg.Get(i), text.NostrEscape)
			}
			dst = append(dst, ']')
		}
	}
	if f.Since != nil && f.Since.I64() > 0 {
		sep()
		dst = text.JSONKey(dst, kSince)
		dst = f.Since.Marshal(dst)
	}
	if f.Until != nil && f.Until.I64() > 0 {
		sep()
		dst = text.JSONKey(dst, kUntil)
		dst = f.Until.Marshal(dst)
	}
	if len(f.Search) > 0 {
		sep()
		dst = text.JSONKey(dst, kSearch)
		dst = text.AppendQuote(dst, f.Search, text.NostrEscape)
	}
	if f.Limit != nil {
		sep()
		dst = text.JSONKey(dst, kLimit)
		dst = appendUint(dst, uint64(*f.Limit))
	}
	dst = append(dst, '}')
	return dst
}

func marshalHexArray(dst []byte, items [][]byte) []byte {
	dst = append(dst, '[')
	for i, it := range items {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = text.AppendQuote(dst, it, hex.EncAppend)
	}
	dst = append(dst, ']')
	return dst
}

func appendUint(dst []byte, v uint64) []byte {
	var buf [20]byte
	n := len(buf)
	if v == 0 {
		return append(dst, '0')
	}
	for v > 0 {
		n--
		buf[n] = byte('0' + v%10)
		v /= 10
	}
	return append(dst, buf[n:]...)
}

// Unmarshal parses a JSON filter object from b into f, returning the
// remainder after the closing brace.
func (f *F) Unmarshal(b []byte) (r []byte, err error) {
	r = text.SkipWhitespace(b)
	if len(r) == 0 || r[0] != '{' {
		return r, errorf.E("expected '{' to begin filter")
	}
	r = r[1:]
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == '}' {
		return r[1:], nil
	}
	for {
		r = text.SkipWhitespace(r)
		var key []byte
		if key, r, err = text.UnmarshalQuoted(r); chk.E(err) {
			return r, err
		}
		r = text.SkipWhitespace(r)
		if len(r) == 0 || r[0] != ':' {
			return r, errorf.E("expected ':' after filter key '%s'", key)
		}
		r = r[1:]
		r = text.SkipWhitespace(r)
		if len(key) >= 2 && key[0] == '#' {
			name := make([]byte, 2)
			copy(name, key[:2])
			var vals [][]byte
			if vals, r, err = unmarshalStringArray(r); chk.E(err) {
				return r, err
			}
			tg := &tag.T{Field: append([][]byte{name}, vals...)}
			f.Tags.Append(tg)
		} else {
			switch {
			case bytes.Equal(key, kIds):
				if f.Ids, r, err = unmarshalHexArray(r); chk.E(err) {
					return r, err
				}
			case bytes.Equal(key, kAuthors):
				if f.Authors, r, err = unmarshalHexArray(r); chk.E(err) {
					return r, err
				}
			case bytes.Equal(key, kKinds):
				if f.Kinds, r, err = unmarshalKindArray(r); chk.E(err) {
					return r, err
				}
			case bytes.Equal(key, kSince):
				var n uint64
				if n, r, err = unmarshalUint(r); chk.E(err) {
					return r, err
				}
				f.Since = timestamp.FromUnix(int64(n))
			case bytes.Equal(key, kUntil):
				var n uint64
				if n, r, err = unmarshalUint(r); chk.E(err) {
					return r, err
				}
				f.Until = timestamp.FromUnix(int64(n))
			case bytes.Equal(key, kLimit):
				var n uint64
				if n, r, err = unmarshalUint(r); chk.E(err) {
					return r, err
				}
				lim := uint(n)
				f.Limit = &lim
			case bytes.Equal(key, kSearch):
				if f.Search, r, err = text.UnmarshalQuoted(r); chk.E(err) {
					return r, err
				}
			default:
				return r, errorf.E("unsupported filter key '%s'", key)
			}
		}
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return r, errorf.E("truncated filter")
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		if r[0] == '}' {
			return r[1:], nil
		}
		return r, errorf.E("expected ',' or '}' in filter")
	}
}

func unmarshalStringArray(r []byte) (out [][]byte, rest []byte, err error) {
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != '[' {
		return nil, r, errorf.E("expected '[' in filter array")
	}
	r = r[1:]
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == ']' {
		return out, r[1:], nil
	}
	for {
		r = text.SkipWhitespace(r)
		var s []byte
		if s, r, err = text.UnmarshalQuoted(r); err != nil {
			return nil, r, err
		}
		out = append(out, s)
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return nil, r, errorf.E("truncated filter array")
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		if r[0] == ']' {
			return out, r[1:], nil
		}
		return nil, r, errorf.E("expected ',' or ']' in filter array")
	}
}

func unmarshalHexArray(r []byte) (out [][]byte, rest []byte, err error) {
	var strs [][]byte
	if strs, rest, err = unmarshalStringArray(r); err != nil {
		return nil, r, err
	}
	out = make([][]byte, len(strs))
	for i, s := range strs {
		if out[i], err = hex.Dec(string(s)); err != nil {
			return nil, r, errorf.E("invalid hex in filter array: %w", err)
		}
	}
	return out, rest, nil
}

func unmarshalKindArray(r []byte) (out []*kind.T, rest []byte, err error) {
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != '[' {
		return nil, r, errorf.E("expected '[' in kinds array")
	}
	r = r[1:]
	r = text.SkipWhitespace(r)
	if len(r) > 0 && r[0] == ']' {
		return out, r[1:], nil
	}
	for {
		r = text.SkipWhitespace(r)
		k := kind.New(0)
		if r, err = k.Unmarshal(r); err != nil {
			return nil, r, err
		}
		out = append(out, k)
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return nil, r, errorf.E("truncated kinds array")
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		if r[0] == ']' {
			return out, r[1:], nil
		}
		return nil, r, errorf.E("expected ',' or ']' in kinds array")
	}
}

func unmarshalUint(r []byte) (v uint64, rest []byte, err error) {
	r = text.SkipWhitespace(r)
	i := 0
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		v = v*10 + uint64(r[i]-'0')
		i++
	}
	if i == 0 {
		return 0, r, errorf.E("expected decimal integer in filter")
	}
	return v, r[i:], nil
}

// Matches reports whether ev satisfies every constraint f carries.
func (f *F) Matches(ev *event.E) bool {
	if ev == nil {
		return false
	}
	if len(f.Ids) > 0 && !containsBytes(f.Ids, ev.Id) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsBytes(f.Authors, ev.Pubkey) {
		return false
	}
	if f.Tags.Len() > 0 && !tagsIntersect(f.Tags, ev.Tags) {
		return false
	}
	if f.Since != nil && f.Since.I64() != 0 && ev.CreatedAt.I64() < f.Since.I64() {
		return false
	}
	if f.Until != nil && f.Until.I64() != 0 && ev.CreatedAt.I64() > f.Until.I64() {
		return false
	}
	return true
}

// containsBytes reports whether v matches any entry in set. A full-length
// (32-byte) entry must match exactly; a shorter entry matches as a
// prefix, per the ids/authors filter clause's exact-or-prefix shape.
func containsBytes(set [][]byte, v []byte) bool {
	for _, s := range set {
		if len(s) == len(v) {
			if bytes.Equal(s, v) {
				return true
			}
			continue
		}
		if len(s) < len(v) && bytes.HasPrefix(v, s) {
			return true
		}
	}
	return false
}

func containsKind(set []*kind.T, k *kind.T) bool {
	for _, s := range set {
		if s.Equal(k) {
			return true
		}
	}
	return false
}

// tagsIntersect reports whether every '#x' filter tag in want has at
// least one matching value among ev's tags with the same key.
func tagsIntersect(want *tag.Tags, have *tag.Tags) bool {
	for _, w := range want.T {
		if w.Len() < 2 || len(w.Key()) != 2 || w.Key()[0] != '#' {
			continue
		}
		name := w.Key()[1:2]
		candidates := have.GetAll(name)
		matched := false
	values:
		for i := 1; i < w.Len(); i++ {
			for _, c := range candidates {
				if bytes.Equal(c.Value(), w.Get(i)) {
					matched = true
					break values
				}
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Fingerprint returns a truncated sha256 hash of f's canonical form with
// Limit excluded, used to deduplicate identical live subscriptions
// (NIP-01 suggests resetting this notion of identity to zero once replay
// results are exhausted).
func (f *F) Fingerprint() uint64 {
	saved := f.Limit
	f.Limit = nil
	b := f.Marshal(nil)
	f.Limit = saved
	h := sha256.Sum256(b)
	return binary.LittleEndian.Uint64(h[:8])
}

// Sort orders every slice-valued field so that two filters carrying the
// same set of constraints marshal identically.
func (f *F) Sort() {
	sort.Slice(f.Ids, func(i, j int) bool { return bytes.Compare(f.Ids[i], f.Ids[j]) < 0 })
	sort.Slice(f.Authors, func(i, j int) bool { return bytes.Compare(f.Authors[i], f.Authors[j]) < 0 })
	sort.Slice(f.Kinds, func(i, j int) bool { return f.Kinds[i].K < f.Kinds[j].K })
}

// Equal reports whether f and o carry the same constraints, ignoring
// Limit.
func (f *F) Equal(o *F) bool {
	if o == nil {
		return false
	}
	f.Sort()
	o.Sort()
	fl, ol := f.Limit, o.Limit
	f.Limit, o.Limit = nil, nil
	eq := bytes.Equal(f.Marshal(nil), o.Marshal(nil))
	f.Limit, o.Limit = fl, ol
	return eq
}

// GenFilter builds a random filter for use in tests.
func GenFilter() *F {
	f := New()
	for range frand.Intn(4) {
		id := make([]byte, sha256.Size)
		frand.Read(id)
		f.Ids = append(f.Ids, id)
	}
	for range frand.Intn(4) {
		f.Kinds = append(f.Kinds, kind.New(frand.Intn(65535)))
	}
	for range frand.Intn(4) {
		_, pub, _ := schnorr.GenerateKeypair()
		f.Authors = append(f.Authors, pub)
	}
	now := timestamp.Now().I64()
	f.Since = timestamp.FromUnix(now - int64(frand.Intn(10000)))
	f.Until = timestamp.Now()
	return f
}
