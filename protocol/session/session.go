// Package session implements the per-connection state machine: the
// websocket wrapper, its NIP-42 authentication state, and its outbound
// write path, shared by every stage of the request pipeline that touches
// one connection.
package session

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"
	"go.uber.org/atomic"

	"corvid.dev/encoders/envelope"
	"corvid.dev/encoders/event"
	"corvid.dev/log"
)

// Session wraps one accepted websocket connection together with the
// authentication and pending-event state the pipeline stages read and
// mutate as frames arrive.
type Session struct {
	writeMu sync.Mutex
	Conn    *websocket.Conn
	Request *http.Request

	remote        atomic.String
	authedPubkey  atomic.Value
	authRequested atomic.Bool
	authed        atomic.Bool
	challenge     atomic.Value

	pendingMu    sync.Mutex
	pendingEvent *event.E
}

// New wraps conn/req into a Session. If authRequired, challenge is stored
// as the session's NIP-42 challenge so the first AUTH envelope sent to
// the client can carry it; otherwise it is not stored.
func New(conn *websocket.Conn, req *http.Request, authRequired bool, challenge string) *Session {
	s := &Session{Conn: conn, Request: req}
	s.remote.Store(remoteFromRequest(req, conn))
	s.authedPubkey.Store([]byte(nil))
	if authRequired {
		s.SetChallenge(challenge)
	}
	return s
}

func remoteFromRequest(r *http.Request, conn *websocket.Conn) string {
	if r != nil {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if parts := strings.Split(xff, ","); len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	if conn != nil {
		if nc := conn.NetConn(); nc != nil {
			return nc.RemoteAddr().String()
		}
	}
	return ""
}

// Write sends a raw text frame to the client, serializing concurrent
// writers since gorilla/fasthttp websocket connections are not safe for
// concurrent writes.
func (s *Session) Write(p []byte) (n int, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err = s.Conn.WriteMessage(websocket.TextMessage, p); err != nil {
		if strings.Contains(err.Error(), "close sent") {
			_ = s.Conn.Close()
			return len(p), nil
		}
		return 0, err
	}
	return len(p), nil
}

// WriteMessage is a wrapper around the underlying connection's
// WriteMessage, serialized the same way Write is.
func (s *Session) WriteMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteMessage(messageType, data)
}

// Close closes the underlying connection.
func (s *Session) Close() error { return s.Conn.Close() }

// RealRemote returns the client address recorded when the session was
// created.
func (s *Session) RealRemote() string { return s.remote.Load() }

// Id identifies this session for the subscription registry; the remote
// address together with the connection pointer is unique per socket.
func (s *Session) Id() string { return s.remote.Load() + ":" + connPointerTag(s.Conn) }

// IsAuthed reports whether the session has completed NIP-42
// authentication.
func (s *Session) IsAuthed() bool { return s.authed.Load() }

// AuthedPubkey returns the pubkey this session authenticated as, or nil.
func (s *Session) AuthedPubkey() []byte {
	v, _ := s.authedPubkey.Load().([]byte)
	return v
}

// SetAuthedPubkey records a successful authentication.
func (s *Session) SetAuthedPubkey(pubkey []byte) {
	s.authed.Store(true)
	s.authedPubkey.Store(pubkey)
}

// Challenge returns the NIP-42 challenge string issued to this session.
func (s *Session) Challenge() string {
	v, _ := s.challenge.Load().(string)
	return v
}

// SetChallenge stores the NIP-42 challenge string for this session.
func (s *Session) SetChallenge(challenge string) { s.challenge.Store(challenge) }

// AuthRequested reports whether the relay has already sent this session
// an AUTH challenge.
func (s *Session) AuthRequested() bool { return s.authRequested.Load() }

// RequestAuth marks that the relay has sent this session an AUTH
// challenge, so it is only sent once per connection.
func (s *Session) RequestAuth() { s.authRequested.Store(true) }

// SetPendingEvent stashes an event awaiting an AUTH challenge/response
// round trip before it can be processed (a relay configured to demand
// auth before accepting writes defers the EVENT until authenticated).
func (s *Session) SetPendingEvent(ev *event.E) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pendingEvent = ev
}

// TakePendingEvent returns and clears the stashed pending event, if any.
func (s *Session) TakePendingEvent() *event.E {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	ev := s.pendingEvent
	s.pendingEvent = nil
	return ev
}

// Deliver pushes a matched event out over this session's connection as
// an `["EVENT", subscriptionId, ev]` frame, satisfying
// subscription.Sink so the registry can fan out directly to sessions.
func (s *Session) Deliver(subscriptionId string, ev *event.E) {
	if _, err := s.Write(envelope.NewResult(subscriptionId, ev).Marshal(nil)); err != nil {
		log.W.F("delivering event %s to subscription %s: %v", ev.IdString(), subscriptionId, err)
	}
}

func connPointerTag(c *websocket.Conn) string {
	if c == nil {
		return "nil"
	}
	return fmt.Sprintf("%p", c)
}
