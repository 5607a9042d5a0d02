// Package chk provides the check-and-log idiom used at call sites throughout
// the relay: `if err = foo(); chk.E(err) { return }` logs a non-nil error at
// the appropriate level and reports whether the caller should treat it as a
// failure, instead of repeating `if err != nil { log...; return }` everywhere.
package chk

import "corvid.dev/log"

// E logs err at error level and reports whether err is non-nil.
func E(err error) bool {
	if err == nil {
		return false
	}
	log.E.F("%v", err)
	return true
}

// T logs err at trace level (for errors that are expected in normal
// operation, such as a client disconnecting) and reports whether err is
// non-nil.
func T(err error) bool {
	if err == nil {
		return false
	}
	log.T.F("%v", err)
	return true
}

// W logs err at warn level and reports whether err is non-nil.
func W(err error) bool {
	if err == nil {
		return false
	}
	log.W.F("%v", err)
	return true
}
