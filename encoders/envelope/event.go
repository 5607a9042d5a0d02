package envelope

import (
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/text"
	"corvid.dev/errorf"
)

// Submission is the client-to-relay `["EVENT", <event>]` message.
type Submission struct{ Event *event.E }

func NewSubmission() *Submission { return &Submission{Event: event.New()} }

func (e *Submission) Label() string { return LEvent }

func (e *Submission) Marshal(dst []byte) []byte {
	dst = open(dst, LEvent)
	dst = e.Event.Marshal(dst)
	return closeArray(dst)
}

func (e *Submission) Unmarshal(r []byte) (rest []byte, err error) {
	e.Event = event.New()
	if rest, err = e.Event.Unmarshal(r); err != nil {
		return r, err
	}
	return skipToEnd(rest)
}

// Result is the relay-to-client `["EVENT", <subscription_id>, <event>]`
// message delivering a matched event, either as a replay result or a
// live fan-out delivery.
type Result struct {
	Subscription string
	Event        *event.E
}

func NewResult(sub string, ev *event.E) *Result {
	return &Result{Subscription: sub, Event: ev}
}

func (e *Result) Label() string { return LEvent }

func (e *Result) Marshal(dst []byte) []byte {
	dst = open(dst, LEvent)
	dst = text.AppendQuote(dst, []byte(e.Subscription), text.NostrEscape)
	dst = append(dst, ',')
	dst = e.Event.Marshal(dst)
	return closeArray(dst)
}

func (e *Result) Unmarshal(r []byte) (rest []byte, err error) {
	var sub []byte
	r = text.SkipWhitespace(r)
	if sub, r, err = text.UnmarshalQuoted(r); err != nil {
		return r, err
	}
	e.Subscription = string(sub)
	r = text.SkipWhitespace(r)
	if len(r) == 0 || r[0] != ',' {
		return r, errorf.E("expected ',' after subscription id")
	}
	r = text.SkipWhitespace(r[1:])
	e.Event = event.New()
	if r, err = e.Event.Unmarshal(r); err != nil {
		return r, err
	}
	return skipToEnd(r)
}
