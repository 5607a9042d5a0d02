package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"corvid.dev/encoders/event"
	"corvid.dev/encoders/kind"
	"corvid.dev/errorf"
)

// GenerateChallenge returns a fresh random challenge string for a
// connection's NIP-42 AUTH round trip.
func GenerateChallenge() string {
	raw := make([]byte, 12)
	_, _ = rand.Read(raw)
	buf := make([]byte, base64.URLEncoding.EncodedLen(len(raw)))
	base64.URLEncoding.Encode(buf, raw)
	return string(buf)
}

// toleranceWindow bounds how far a kind 22242 event's created_at may drift
// from the relay's clock before it is rejected.
const toleranceWindow = 10 * time.Minute

var (
	challengeTagKey = []byte("challenge")
	relayTagKey     = []byte("relay")
)

// Validate reports whether ev is a valid NIP-42 authentication event for
// the given challenge and serviceURL: it must be a kind 22242 event
// carrying a matching challenge tag and a relay tag that resolves to the
// same scheme/host/path as serviceURL, timestamped within toleranceWindow
// of now, and correctly signed.
func Validate(ev *event.E, challenge string, serviceURL string) (ok bool, err error) {
	if !ev.Kind.Equal(kind.AuthEvent) {
		return false, errorf.E("wrong kind for auth event: %d", ev.Kind.K)
	}

	c := ev.Tags.GetFirst(challengeTagKey)
	if c == nil || string(c.Value()) != challenge {
		return false, errorf.E("challenge tag missing or mismatched")
	}

	r := ev.Tags.GetFirst(relayTagKey)
	if r == nil {
		return false, errorf.E("relay tag missing from auth response")
	}
	expected, err := normalizeURL(serviceURL)
	if err != nil {
		return false, errorf.E("parsing configured service url: %w", err)
	}
	found, err := normalizeURL(string(r.Value()))
	if err != nil {
		return false, errorf.E("parsing relay tag url: %w", err)
	}
	if expected.Scheme != found.Scheme || expected.Host != found.Host || expected.Path != found.Path {
		return false, errorf.E("relay tag does not match this relay's service url")
	}

	now := time.Now()
	t := ev.CreatedAt.Time()
	if t.After(now.Add(toleranceWindow)) || t.Before(now.Add(-toleranceWindow)) {
		return false, errorf.E("auth event timestamp too far from current time")
	}

	return ev.Verify()
}

func normalizeURL(raw string) (*url.URL, error) {
	return url.Parse(strings.ToLower(strings.TrimSuffix(raw, "/")))
}
