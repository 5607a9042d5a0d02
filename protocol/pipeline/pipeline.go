// Package pipeline implements the staged request pipeline: an ordered
// list of stages threading a single Context from raw inbound frame to
// outbound frames, each stage free to continue or halt the chain. This
// replaces the teacher's direct switch dispatch in HandleMessage with the
// re-architected stage list its own design notes call for.
package pipeline

import (
	"corvid.dev/encoders/envelope"
	"corvid.dev/interfaces/store"
	"corvid.dev/protocol/auth"
	"corvid.dev/protocol/session"
	"corvid.dev/subscription"
)

// Kind identifies which envelope variant a Context carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindEvent
	KindReq
	KindClose
	KindCount
	KindAuth
)

// Context is the mutable state threaded through the stage list for one
// inbound frame. Stages read and append to it; none of them write
// directly to the connection.
type Context struct {
	RawFrame []byte
	Session  *session.Session

	Kind  Kind
	Event *envelope.Submission
	Req   *envelope.Req
	Close *envelope.Close
	Count *envelope.Count
	Auth  *envelope.AuthResponse

	// Frames accumulates the wire frames to send back, in order, as
	// stages produce them.
	Frames [][]byte
}

// Emit appends a rendered frame to the context's outbound queue.
func (c *Context) Emit(frame []byte) { c.Frames = append(c.Frames, frame) }

// Limits mirrors the relay_info.limitation configuration surface: the
// per-message and per-event bounds the pipeline stages enforce.
// MaxSubscriptions is carried here but no stage checks it.
type Limits struct {
	MaxMessageLength     int
	MaxSubscriptions     int
	MaxSubIdLength       int
	MaxContentLength     int
	MaxEventTags         int
	MinPowDifficulty     int
	CreatedAtLowerLimit  int64
	CreatedAtUpperLimit  int64
	DefaultLimit         uint
	MaxLimit             uint
}

// Policy mirrors the relay_policy configuration surface.
type Policy struct {
	MinPrefixLength int
}

// Options bundles everything a stage needs beyond the Context itself:
// configuration, the store, the subscription registry, and the
// collaborators that enforce auth and ownership.
type Options struct {
	ServiceURL   string
	AuthRequired bool
	OwnerPubkeys [][]byte

	// AuthMode gates which pubkeys may authenticate at all: "none"
	// leaves every successfully-signed AUTH event accepted, "whitelist"
	// accepts only WhitelistPubkeys, "denylist" rejects DenylistPubkeys
	// and accepts everyone else.
	AuthMode         string
	WhitelistPubkeys [][]byte
	DenylistPubkeys  [][]byte

	Limits Limits
	Policy Policy

	Store    store.I
	Registry *subscription.Registry
	Throttle *auth.Throttle
}

// IsOwner reports whether pubkey belongs to a configured relay owner,
// who may bypass the same-author restriction on deletions.
func (o *Options) IsOwner(pubkey []byte) bool {
	for _, pk := range o.OwnerPubkeys {
		if bytesEqual(pk, pubkey) {
			return true
		}
	}
	return false
}

// PubkeyAllowed applies AuthMode's whitelist/denylist policy to a pubkey
// attempting to authenticate.
func (o *Options) PubkeyAllowed(pubkey []byte) bool {
	switch o.AuthMode {
	case "whitelist":
		for _, pk := range o.WhitelistPubkeys {
			if bytesEqual(pk, pubkey) {
				return true
			}
		}
		return false
	case "denylist":
		for _, pk := range o.DenylistPubkeys {
			if bytesEqual(pk, pubkey) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Result is a stage's verdict: continue to the next stage, or halt the
// chain. Reason, when set on a halt, is a stable notice vocabulary
// string; the engine only synthesizes a NOTICE frame from it if the
// stage didn't already queue a more specific frame (e.g. an OK false).
type Result struct {
	Halt   bool
	Reason string
}

// Continue lets the chain proceed to the next stage.
func Continue() Result { return Result{} }

// Halt stops the chain, recording reason for the engine's finalization
// step.
func Halt(reason string) Result { return Result{Halt: true, Reason: reason} }

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Call(ctx *Context, opts *Options) Result
}

const fallbackNotice = "request rejected"

// Engine folds a Context through an ordered list of Stages, stopping at
// the first Halt.
type Engine struct {
	stages []Stage
}

// New builds an Engine running stages in order.
func New(stages ...Stage) *Engine { return &Engine{stages: stages} }

// Run threads ctx through every stage until one halts or they all
// continue, then finalizes the outbound frame queue.
func (e *Engine) Run(ctx *Context, opts *Options) [][]byte {
	for _, s := range e.stages {
		res := s.Call(ctx, opts)
		if res.Halt {
			if len(ctx.Frames) == 0 {
				notice := res.Reason
				if notice == "" {
					notice = fallbackNotice
				}
				ctx.Emit(envelope.NewNotice(notice).Marshal(nil))
			}
			return ctx.Frames
		}
	}
	return ctx.Frames
}
