// Package errorf provides formatted error construction matching the call
// sites used throughout the codec and store packages, so an error message
// and its offending data can be built in one expression.
package errorf

import "fmt"

// E constructs a plain formatted error.
func E(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// W constructs a formatted error intended to be treated as a warning-level
// condition (a recoverable state the caller chooses to surface or ignore).
func W(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
