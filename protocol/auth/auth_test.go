package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corvid.dev/crypto/schnorr"
	"corvid.dev/encoders/event"
	"corvid.dev/encoders/kind"
	"corvid.dev/encoders/tag"
	"corvid.dev/encoders/timestamp"
)

func authEvent(t *testing.T, sec []byte, challenge, relay string, ts int64) *event.E {
	ev := &event.E{
		Kind:      kind.AuthEvent,
		CreatedAt: timestamp.FromUnix(ts),
		Tags: tag.NewTags(
			tag.NewFromStrings("challenge", challenge),
			tag.NewFromStrings("relay", relay),
		),
		Content: []byte(""),
	}
	require.NoError(t, ev.Sign(event.NewSecret(sec)))
	return ev
}

func TestValidateAcceptsMatchingChallengeAndRelay(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := authEvent(t, sec, "abc123", "wss://relay.test", timestamp.Now().I64())

	ok, err := Validate(ev, "abc123", "wss://relay.test")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateNormalizesTrailingSlashAndCase(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := authEvent(t, sec, "abc123", "WSS://Relay.Test/", timestamp.Now().I64())

	ok, err := Validate(ev, "abc123", "wss://relay.test")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateRejectsWrongKind(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := &event.E{
		Kind:      kind.TextNote,
		CreatedAt: timestamp.Now(),
		Tags:      tag.NewTags(),
		Content:   []byte(""),
	}
	require.NoError(t, ev.Sign(event.NewSecret(sec)))

	_, err = Validate(ev, "abc123", "wss://relay.test")
	assert.Error(t, err)
}

func TestValidateRejectsMismatchedChallenge(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := authEvent(t, sec, "abc123", "wss://relay.test", timestamp.Now().I64())

	ok, err := Validate(ev, "different", "wss://relay.test")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestValidateRejectsMismatchedRelay(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := authEvent(t, sec, "abc123", "wss://other.test", timestamp.Now().I64())

	ok, err := Validate(ev, "abc123", "wss://relay.test")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestValidateRejectsStaleTimestamp(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	stale := timestamp.Now().I64() - int64((20 * 60))
	ev := authEvent(t, sec, "abc123", "wss://relay.test", stale)

	ok, err := Validate(ev, "abc123", "wss://relay.test")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestValidateRejectsTamperedContent(t *testing.T) {
	sec, _, err := schnorr.GenerateKeypair()
	require.NoError(t, err)
	ev := authEvent(t, sec, "abc123", "wss://relay.test", timestamp.Now().I64())
	ev.Content = []byte("tampered")

	ok, err := Validate(ev, "abc123", "wss://relay.test")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestThrottleBlocksAfterThreeFailures(t *testing.T) {
	tr := NewThrottle()
	ip := "203.0.113.1"

	assert.False(t, tr.RecordFailedAttempt(ip))
	assert.False(t, tr.RecordFailedAttempt(ip))
	assert.True(t, tr.RecordFailedAttempt(ip))
	assert.True(t, tr.IsBlocked(ip))
}

func TestThrottleEscalatesBlockDurationOnRepeatOffense(t *testing.T) {
	tr := NewThrottle()
	ip := "203.0.113.2"

	for i := 0; i < 3; i++ {
		tr.RecordFailedAttempt(ip)
	}
	first := tr.BlockedUntil(ip)
	require.False(t, first.IsZero())

	tr.Authenticate(ip)
	assert.False(t, tr.IsBlocked(ip))

	for i := 0; i < 3; i++ {
		tr.RecordFailedAttempt(ip)
	}
	second := tr.BlockedUntil(ip)
	assert.True(t, second.Sub(first) > BaseBlockDuration/2, "second block should be longer than the first")
}

func TestThrottleAuthenticateClearsBlockButKeepsOffenseHistory(t *testing.T) {
	tr := NewThrottle()
	ip := "203.0.113.3"
	for i := 0; i < 3; i++ {
		tr.RecordFailedAttempt(ip)
	}
	require.True(t, tr.IsBlocked(ip))

	tr.Authenticate(ip)
	assert.False(t, tr.IsBlocked(ip))
	assert.Equal(t, 1, tr.offenseCount[ip])
}

func TestThrottleResetClearsEverything(t *testing.T) {
	tr := NewThrottle()
	ip := "203.0.113.4"
	for i := 0; i < 3; i++ {
		tr.RecordFailedAttempt(ip)
	}
	tr.Reset(ip)

	assert.False(t, tr.IsBlocked(ip))
	assert.Equal(t, 0, tr.offenseCount[ip])
}
