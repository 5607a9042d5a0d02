package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/timestamp"
)

func signedEvent(t *testing.T) *event.E {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := &event.E{
		Kind:      kind.TextNote,
		CreatedAt: timestamp.Now(),
		Tags:      tag.NewTags(),
		Content:   []byte("hello"),
	}
	require.NoError(t, ev.Sign(event.NewSecret(sec)))
	return ev
}

func TestIdentifyReadsLabel(t *testing.T) {
	label, rest, err := Identify([]byte(`["EVENT", {"id":"x"}]`))
	require.NoError(t, err)
	assert.Equal(t, "EVENT", label)
	assert.Equal(t, byte('{'), rest[0])
}

func TestSubmissionRoundTrip(t *testing.T) {
	ev := signedEvent(t)
	s := &Submission{Event: ev}
	b := s.Marshal(nil)

	label, rest, err := Identify(b)
	require.NoError(t, err)
	assert.Equal(t, LEvent, label)

	got := NewSubmission()
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, ev.IdString(), got.Event.IdString())
}

func TestResultRoundTrip(t *testing.T) {
	ev := signedEvent(t)
	r := NewResult("sub1", ev)
	b := r.Marshal(nil)

	_, rest, err := Identify(b)
	require.NoError(t, err)

	got := &Result{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
	assert.Equal(t, ev.IdString(), got.Event.IdString())
}

func TestReqRoundTrip(t *testing.T) {
	f := filter.New()
	f.Kinds = []*kind.T{kind.New(1)}
	r := &Req{Subscription: "sub1", Filters: []*filter.F{f}}
	b := r.Marshal(nil)

	_, rest, err := Identify(b)
	require.NoError(t, err)

	got := NewReq()
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
	require.Len(t, got.Filters, 1)
	assert.True(t, f.Equal(got.Filters[0]))
}

func TestCloseRoundTrip(t *testing.T) {
	c := NewClose("sub1")
	b := c.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &Close{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
}

func TestClosedRoundTrip(t *testing.T) {
	c := NewClosed("sub1", "auth-required: please authenticate")
	b := c.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &Closed{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
	assert.Equal(t, "auth-required: please authenticate", got.Message)
}

func TestOKRoundTrip(t *testing.T) {
	id := make([]byte, 32)
	id[0] = 0xab
	ok := NewOK(id, true, "")
	b := ok.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &OK{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, id, got.Id)
	assert.True(t, got.Ok)
	assert.Equal(t, "", got.Message)
}

func TestOKRoundTripFalseWithMessage(t *testing.T) {
	id := make([]byte, 32)
	ok := NewOK(id, false, "duplicate: already have this event")
	b := ok.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &OK{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.False(t, got.Ok)
	assert.Equal(t, "duplicate: already have this event", got.Message)
}

func TestEOSERoundTrip(t *testing.T) {
	e := NewEOSE("sub1")
	b := e.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &EOSE{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
}

func TestNoticeRoundTrip(t *testing.T) {
	n := NewNotice("invalid message format")
	b := n.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &Notice{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "invalid message format", got.Message)
}

func TestCountRoundTrip(t *testing.T) {
	f := filter.New()
	f.Kinds = []*kind.T{kind.New(1)}
	c := &Count{Subscription: "sub1", Filters: []*filter.F{f}}
	b := c.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := NewCount()
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
	require.Len(t, got.Filters, 1)
}

func TestCountResponseRoundTrip(t *testing.T) {
	cr := NewCountResponse("sub1", 42)
	b := cr.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	got := &CountResponse{}
	_, err = got.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.Subscription)
	assert.Equal(t, uint64(42), got.Count)
}

func TestAuthChallengeAndResponseRoundTrip(t *testing.T) {
	challenge := NewAuthChallenge("abc123")
	b := challenge.Marshal(nil)
	_, rest, err := Identify(b)
	require.NoError(t, err)
	gotChallenge := &AuthChallenge{}
	_, err = gotChallenge.Unmarshal(rest)
	require.NoError(t, err)
	assert.Equal(t, "abc123", gotChallenge.Challenge)

	ev := signedEvent(t)
	resp := &AuthResponse{Event: ev}
	b2 := resp.Marshal(nil)
	_, rest2, err := Identify(b2)
	require.NoError(t, err)
	gotResp := &AuthResponse{}
	_, err = gotResp.Unmarshal(rest2)
	require.NoError(t, err)
	assert.Equal(t, ev.IdString(), gotResp.Event.IdString())
}
