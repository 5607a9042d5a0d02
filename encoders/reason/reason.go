// Package reason defines the standard machine-readable prefixes NIP-01
// expects on the human-readable message of an OK/CLOSED response, so
// clients can programmatically distinguish why a request failed.
package reason

import "fmt"

// Prefix is one of the standard OK/CLOSED message prefixes.
type Prefix string

const (
	AuthRequired Prefix = "auth-required"
	PoW          Prefix = "pow"
	Duplicate    Prefix = "duplicate"
	Blocked      Prefix = "blocked"
	RateLimited  Prefix = "rate-limited"
	Invalid      Prefix = "invalid"
	Error        Prefix = "error"
	Unsupported  Prefix = "unsupported"
	Restricted   Prefix = "restricted"
)

// F renders the prefix followed by a formatted explanation, the form
// NIP-01 expects on the wire: "prefix: explanation".
func (p Prefix) F(format string, args ...any) string {
	return string(p) + ": " + fmt.Sprintf(format, args...)
}
