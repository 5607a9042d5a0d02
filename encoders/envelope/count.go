package envelope

import (
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/text"
	"corvid.dev/errorf"
)

// Count is the client-to-relay `["COUNT", <subscription_id>, <filters...>]`
// message requesting a match count instead of the matching events
// themselves (NIP-45).
type Count struct {
	Subscription string
	Filters      []*filter.F
}

func NewCount() *Count { return &Count{} }

func (e *Count) Label() string { return LCount }

func (e *Count) Marshal(dst []byte) []byte {
	dst = open(dst, LCount)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	for _, f := range e.Filters {
		dst = append(dst, ',')
		dst = f.Marshal(dst)
	}
	return closeArray(dst)
}

func (e *Count) Unmarshal(r []byte) (rest []byte, err error) {
	var sub []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	for {
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return r, errorf.E("unterminated COUNT envelope")
		}
		if r[0] == ']' {
			return r[1:], nil
		}
		if r[0] != ',' {
			return r, errorf.E("expected ',' or ']' in COUNT envelope")
		}
		r = text.SkipWhitespace(r[1:])
		if len(e.Filters) >= maxFilters {
			return r, errorf.E("too many filters in one COUNT, max %d", maxFilters)
		}
		f := filter.New()
		if r, err = f.Unmarshal(r); err != nil {
			return r, err
		}
		e.Filters = append(e.Filters, f)
	}
}

// CountResponse is the relay-to-client `["COUNT", <subscription_id>,
// {"count": <n>}]` reply to a COUNT request.
type CountResponse struct {
	Subscription string
	Count        uint64
}

func NewCountResponse(sub string, count uint64) *CountResponse {
	return &CountResponse{Subscription: sub, Count: count}
}

func (e *CountResponse) Label() string { return LCount }

func (e *CountResponse) Marshal(dst []byte) []byte {
	dst = open(dst, LCount)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	dst = append(dst, ',', '{', '"', 'c', 'o', 'u', 'n', 't', '"', ':')
	dst = appendUint(dst, e.Count)
	dst = append(dst, '}')
	return closeArray(dst)
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

func (e *CountResponse) Unmarshal(r []byte) (rest []byte, err error) {
	var sub []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != ',' {
		return r, errorf.E("expected ',' after COUNT subscription id")
	}
	r = text.SkipWhitespace(r[1:])
	if len(r) == 0 || r[0] != '{' {
		return r, errorf.E("expected '{' in COUNT response")
	}
	r = r[1:]
	r = text.SkipWhitespace(r)
	var key []byte
	if key, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	if string(key) != "count" {
		return r, errorf.E("expected 'count' key in COUNT response")
	}
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != ':' {
		return r, errorf.E("expected ':' after count key")
	}
	r = text.SkipWhitespace(r[1:])
	var n uint64
	i := 0
	for i < len(r) && r[i] >= '0' && r[i] <= '9' {
		n = n*10 + uint64(r[i]-'0')
		i++
	}
	e.Count = n
	r = text.SkipWhitespace(r[i:])
	if len(r) == 0 || r[0] != '}' {
		return r, errorf.E("expected '}' to close COUNT response object")
	}
	return skipToEnd(r[1:])
}
