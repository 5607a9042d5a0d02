package timestamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarshalUnmarshal(t *testing.T) {
	ts := FromUnix(1700000000)
	out := ts.Marshal(nil)
	assert.Equal(t, "1700000000", string(out))

	parsed := New(0)
	rest, err := parsed.Unmarshal(append([]byte("1700000000"), ',', 'x'))
	assert.NoError(t, err)
	assert.Equal(t, ",x", string(rest))
	assert.Equal(t, int64(1700000000), parsed.I64())
}

func TestUnmarshalInvalid(t *testing.T) {
	ts := New(0)
	_, err := ts.Unmarshal([]byte("not-a-number"))
	assert.Error(t, err)
}

func TestNilReceiverSafe(t *testing.T) {
	var ts *T
	assert.Equal(t, int64(0), ts.I64())
	assert.Equal(t, uint64(0), ts.U64())
}

func TestNowIsRecent(t *testing.T) {
	now := Now()
	assert.Greater(t, now.I64(), int64(1600000000))
}
