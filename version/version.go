// Package version carries the build identity printed at startup and served
// in the NIP-11 document.
package version

// V is the relay version string; overridden at build time with
// -ldflags "-X corvid.dev/version.V=...".
var V = "v0.1.0"

// Description is the default NIP-11 description field.
const Description = "a nostr relay"

// URL is the default NIP-11 software field.
const URL = "https://corvid.dev"
