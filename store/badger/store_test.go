package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/filter"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/timestamp"
	"corvid.dev/interfaces/store"
)

func newTestStore(t *testing.T) *Store {
	s := New()
	require.NoError(t, s.Init(t.TempDir()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func signedNote(t *testing.T, sec []byte, k *kind.T, ts int64, content string, tags *tag.Tags) *event.E {
	if tags == nil {
		tags = tag.NewTags()
	}
	ev := &event.E{Kind: k, CreatedAt: timestamp.FromUnix(ts), Tags: tags, Content: []byte(content)}
	require.NoError(t, ev.Sign(event.NewSecret(sec)))
	return ev
}

func TestSaveEventDuplicateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := signedNote(t, sec, kind.TextNote, 100, "hello", nil)

	res, err := s.SaveEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, store.Accepted, res.Outcome)

	res2, err := s.SaveEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, store.Duplicate, res2.Outcome)
	assert.Equal(t, "duplicate: already have this event", res2.Reason)
}

func TestEphemeralEventNeverQueryable(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := signedNote(t, sec, kind.New(20001), 100, "status", nil)

	res, err := s.SaveEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, store.Accepted, res.Outcome)

	f := filter.New()
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReplaceableCollapseKeepsNewestByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)

	older := signedNote(t, sec, kind.Metadata, 100, `{"name":"old"}`, nil)
	newer := signedNote(t, sec, kind.Metadata, 200, `{"name":"new"}`, nil)

	res1, err := s.SaveEvent(context.Background(), older)
	require.NoError(t, err)
	assert.Equal(t, store.Accepted, res1.Outcome)

	res2, err := s.SaveEvent(context.Background(), newer)
	require.NoError(t, err)
	assert.Equal(t, store.Accepted, res2.Outcome)

	f := filter.New()
	f.Kinds = []*kind.T{kind.Metadata}
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, newer.IdString(), out[0].IdString())

	// The superseded version remains reachable by exact id (pure-id bypass).
	idf := filter.New()
	idf.Ids = [][]byte{older.Id}
	out2, err := s.QueryEvents(context.Background(), idf)
	require.NoError(t, err)
	require.Len(t, out2, 1)
	assert.Equal(t, older.IdString(), out2[0].IdString())
}

func TestReplaceableCollapseRejectsStaleSubmission(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)

	newer := signedNote(t, sec, kind.Metadata, 200, `{"name":"new"}`, nil)
	older := signedNote(t, sec, kind.Metadata, 100, `{"name":"old"}`, nil)

	_, err = s.SaveEvent(context.Background(), newer)
	require.NoError(t, err)

	res, err := s.SaveEvent(context.Background(), older)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, res.Outcome)
	assert.Equal(t, "rejected: stale replacement event", res.Reason)
}

func TestParameterizedReplaceableCollapsePerDTag(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)

	dTag := tag.NewTags(tag.NewFromStrings("d", "profile-v1"))
	older := signedNote(t, sec, kind.New(30000), 100, "v1", dTag)
	newer := signedNote(t, sec, kind.New(30000), 200, "v2", dTag)

	_, err = s.SaveEvent(context.Background(), older)
	require.NoError(t, err)
	_, err = s.SaveEvent(context.Background(), newer)
	require.NoError(t, err)

	f := filter.New()
	f.Kinds = []*kind.T{kind.New(30000)}
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, newer.IdString(), out[0].IdString())

	idf := filter.New()
	idf.Ids = [][]byte{older.Id}
	out2, err := s.QueryEvents(context.Background(), idf)
	require.NoError(t, err)
	require.Len(t, out2, 1)
	assert.Equal(t, older.IdString(), out2[0].IdString())
}

func TestDeleteEventMasksFromQueryButNotFromIdLookup(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := signedNote(t, sec, kind.TextNote, 100, "will be deleted", nil)

	_, err = s.SaveEvent(context.Background(), ev)
	require.NoError(t, err)

	require.NoError(t, s.DeleteEvent(context.Background(), ev.Id))

	f := filter.New()
	f.Kinds = []*kind.T{kind.TextNote}
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, out)

	idf := filter.New()
	idf.Ids = [][]byte{ev.Id}
	out2, err := s.QueryEvents(context.Background(), idf)
	require.NoError(t, err)
	require.Len(t, out2, 1)
	assert.Equal(t, ev.IdString(), out2[0].IdString())
}

func TestCountEventsMatchesQueryEventsCardinality(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		ev := signedNote(t, sec, kind.TextNote, 100+i, "note", nil)
		_, err := s.SaveEvent(context.Background(), ev)
		require.NoError(t, err)
	}

	f := filter.New()
	f.Kinds = []*kind.T{kind.TextNote}
	n, err := s.CountEvents(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestQueryEventsOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	a := signedNote(t, sec, kind.TextNote, 100, "a", nil)
	b := signedNote(t, sec, kind.TextNote, 200, "b", nil)
	c := signedNote(t, sec, kind.TextNote, 300, "c", nil)
	for _, ev := range []*event.E{a, b, c} {
		_, err := s.SaveEvent(context.Background(), ev)
		require.NoError(t, err)
	}

	f := filter.New()
	f.Kinds = []*kind.T{kind.TextNote}
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, c.IdString(), out[0].IdString())
	assert.Equal(t, b.IdString(), out[1].IdString())
	assert.Equal(t, a.IdString(), out[2].IdString())
}

func TestQueryEventsFullTextSearch(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	a := signedNote(t, sec, kind.TextNote, 100, "the quick brown fox", nil)
	b := signedNote(t, sec, kind.TextNote, 200, "lazy dog sleeps", nil)
	for _, ev := range []*event.E{a, b} {
		_, err := s.SaveEvent(context.Background(), ev)
		require.NoError(t, err)
	}

	f := filter.New()
	f.Search = []byte("fox")
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a.IdString(), out[0].IdString())
}

func TestWipeClearsEverything(t *testing.T) {
	s := newTestStore(t)
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := signedNote(t, sec, kind.TextNote, 100, "note", nil)
	_, err = s.SaveEvent(context.Background(), ev)
	require.NoError(t, err)

	require.NoError(t, s.Wipe())

	f := filter.New()
	out, err := s.QueryEvents(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, uint64(0), s.EventCount())
}
