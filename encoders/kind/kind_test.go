package kind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClasses(t *testing.T) {
	assert.True(t, New(0).IsReplaceable())
	assert.True(t, New(3).IsReplaceable())
	assert.True(t, New(10002).IsReplaceable())
	assert.False(t, New(1).IsReplaceable())

	assert.True(t, New(20000).IsEphemeral())
	assert.True(t, New(29999).IsEphemeral())
	assert.False(t, New(30000).IsEphemeral())

	assert.True(t, New(30023).IsParameterizedReplaceable())
	assert.False(t, New(29999).IsParameterizedReplaceable())
}

func TestIsPrivileged(t *testing.T) {
	assert.True(t, New(4).IsPrivileged())
	assert.True(t, New(1059).IsPrivileged())
	assert.True(t, New(1060).IsPrivileged())
	assert.False(t, New(1).IsPrivileged())
	// Plain ephemeral kinds must not be misclassified as privileged, or
	// RelayPolicyValidator would demand a p tag on every one of them.
	assert.False(t, New(20001).IsPrivileged())
	assert.False(t, New(29999).IsPrivileged())
}

func TestEqual(t *testing.T) {
	assert.True(t, New(1).Equal(New(1)))
	assert.False(t, New(1).Equal(New(2)))
	var nilKind *T
	assert.True(t, nilKind.Equal(nil))
	assert.False(t, nilKind.Equal(New(1)))
}

func TestMarshalUnmarshal(t *testing.T) {
	k := New(1234)
	out := k.Marshal(nil)
	assert.Equal(t, "1234", string(out))

	parsed := New(0)
	rest, err := parsed.Unmarshal(append([]byte("1234"), ',', 'x'))
	assert.NoError(t, err)
	assert.Equal(t, ",x", string(rest))
	assert.Equal(t, uint16(1234), parsed.K)
}

func TestUnmarshalInvalid(t *testing.T) {
	k := New(0)
	_, err := k.Unmarshal([]byte("nope"))
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	assert.Equal(t, "text_note", TextNote.Name())
	assert.Equal(t, "kind:9999", New(9999).Name())
}
