package envelope

import (
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/text"
	"corvid.dev/errorf"
)

// maxFilters caps how many filter objects a single REQ/COUNT may carry,
// guarding against a client trying to force an unbounded fan-out of
// concurrent queries from one subscription.
const maxFilters = 32

// Req is the client-to-relay `["REQ", <subscription_id>, <filters...>]`
// message opening (or replacing) a subscription.
type Req struct {
	Subscription string
	Filters      []*filter.F
}

func NewReq() *Req { return &Req{} }

func (e *Req) Label() string { return LReq }

func (e *Req) Marshal(dst []byte) []byte {
	dst = open(dst, LReq)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	for _, f := range e.Filters {
		dst = append(dst, ',')
		dst = f.Marshal(dst)
	}
	return closeArray(dst)
}

func (e *Req) Unmarshal(r []byte) (rest []byte, err error) {
	var sub []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	for {
		r = text.SkipWhitespace(r)
		if len(r) == 0 {
			return r, errorf.E("unterminated REQ envelope")
		}
		if r[0] == ']' {
			return r[1:], nil
		}
		if r[0] != ',' {
			return r, errorf.E("expected ',' or ']' in REQ envelope")
		}
		r = text.SkipWhitespace(r[1:])
		if len(e.Filters) >= maxFilters {
			return r, errorf.E("too many filters in one REQ, max %d", maxFilters)
		}
		f := filter.New()
		if r, err = f.Unmarshal(r); err != nil {
			return r, err
		}
		e.Filters = append(e.Filters, f)
	}
}
