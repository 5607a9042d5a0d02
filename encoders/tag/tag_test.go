package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyValueGet(t *testing.T) {
	tg := NewFromStrings("e", "abcd", "relay", "reply")
	assert.Equal(t, "e", string(tg.Key()))
	assert.Equal(t, "abcd", string(tg.Value()))
	assert.Equal(t, "relay", string(tg.Get(2)))
	assert.Nil(t, tg.Get(9))
	assert.Equal(t, 4, tg.Len())
}

func TestNilTagSafe(t *testing.T) {
	var tg *T
	assert.Nil(t, tg.Key())
	assert.Nil(t, tg.Value())
	assert.Equal(t, 0, tg.Len())
}

func TestTagMarshalUnmarshal(t *testing.T) {
	tg := NewFromStrings("p", "deadbeef")
	out := tg.Marshal(nil)
	assert.Equal(t, `["p","deadbeef"]`, string(out))

	parsed := &T{}
	rest, err := parsed.Unmarshal(append(out, ',', 'x'))
	assert.NoError(t, err)
	assert.Equal(t, ",x", string(rest))
	assert.Equal(t, "p", string(parsed.Key()))
	assert.Equal(t, "deadbeef", string(parsed.Value()))
}

func TestTagsGetFirstGetAll(t *testing.T) {
	ts := NewTags(
		NewFromStrings("e", "id1"),
		NewFromStrings("p", "pub1"),
		NewFromStrings("e", "id2"),
	)
	assert.Equal(t, "id1", string(ts.GetFirst([]byte("e")).Value()))
	assert.Len(t, ts.GetAll([]byte("e")), 2)
	assert.Nil(t, ts.GetFirst([]byte("d")))
}

func TestTagsMarshalUnmarshalRoundtrip(t *testing.T) {
	ts := NewTags(
		NewFromStrings("e", "id1"),
		NewFromStrings("p", "pub1"),
	)
	out := ts.Marshal(nil)
	assert.Equal(t, `[["e","id1"],["p","pub1"]]`, string(out))

	parsed := &Tags{}
	rest, err := parsed.Unmarshal(out)
	assert.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, 2, parsed.Len())
	assert.Equal(t, "pub1", string(parsed.GetFirst([]byte("p")).Value()))
}

func TestTagsUnmarshalEmpty(t *testing.T) {
	parsed := &Tags{}
	rest, err := parsed.Unmarshal([]byte("[]"))
	assert.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, 0, parsed.Len())
}

func TestCloneIsDeep(t *testing.T) {
	ts := NewTags(NewFromStrings("e", "id1"))
	cp := ts.Clone()
	cp.T[0].Field[1][0] = 'X'
	assert.Equal(t, "id1", string(ts.T[0].Value()))
}
