// Package log provides a small leveled logger in the style used throughout
// the relay: package-level level handles with an F (printf-style) method
// and a C (lazy closure) method for trace output whose formatting cost
// should only be paid when the level is actually enabled.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// Level identifies a log severity.
type Level int32

const (
	Fatal Level = iota
	Error
	Warn
	Info
	Debug
	Trace
)

var names = map[Level]string{
	Fatal: "fatal", Error: "error", Warn: "warn",
	Info: "info", Debug: "debug", Trace: "trace",
}

var colors = map[Level]*color.Color{
	Fatal: color.New(color.FgHiRed, color.Bold),
	Error: color.New(color.FgRed),
	Warn:  color.New(color.FgYellow),
	Info:  color.New(color.FgCyan),
	Debug: color.New(color.FgGreen),
	Trace: color.New(color.FgWhite),
}

var current atomic.Int32

func init() { current.Store(int32(Info)) }

// SetLevel changes the global log level by name; unknown names fall back to
// Info.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "fatal":
		current.Store(int32(Fatal))
	case "error":
		current.Store(int32(Error))
	case "warn", "warning":
		current.Store(int32(Warn))
	case "info":
		current.Store(int32(Info))
	case "debug":
		current.Store(int32(Debug))
	case "trace":
		current.Store(int32(Trace))
	default:
		current.Store(int32(Info))
	}
}

// Handle is a bound log level; F writes a formatted line, C lazily invokes a
// closure to build the line only when the level is enabled.
type Handle Level

func (h Handle) enabled() bool { return Level(h) <= Level(current.Load()) }

func (h Handle) F(format string, args ...any) {
	if !h.enabled() {
		return
	}
	write(Level(h), fmt.Sprintf(format, args...))
}

func (h Handle) Ln(args ...any) {
	if !h.enabled() {
		return
	}
	write(Level(h), fmt.Sprintln(args...))
}

func (h Handle) C(build func() string) {
	if !h.enabled() {
		return
	}
	write(Level(h), build())
}

func write(l Level, msg string) {
	c := colors[l]
	ts := time.Now().Format("15:04:05.000")
	_, _ = c.Fprintf(
		os.Stderr, "%s [%s] %s\n", ts, strings.ToUpper(names[l]),
		strings.TrimRight(msg, "\n"),
	)
	if l == Fatal {
		os.Exit(1)
	}
}

var (
	F = Handle(Fatal)
	E = Handle(Error)
	W = Handle(Warn)
	I = Handle(Info)
	D = Handle(Debug)
	T = Handle(Trace)
)
