// Package socketapi implements the relay's websocket connection handler:
// the upgrade, the NIP-42 challenge and auth-timeout, the keepalive
// pinger, and the inbound frame loop that feeds each frame to the
// request pipeline and writes back whatever frames it returns.
package socketapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fasthttp/websocket"

	"corvid.dev/chk"
	"corvid.dev/encoders/envelope"
	"corvid.dev/log"
	"corvid.dev/protocol/auth"
	"corvid.dev/protocol/pipeline"
	"corvid.dev/protocol/session"
)

const (
	// DefaultWriteWait bounds how long a single websocket write may block.
	DefaultWriteWait = 10 * time.Second
	// DefaultPongWait is how long a connection is given to answer a ping
	// before it is considered dead.
	DefaultPongWait = 60 * time.Second
	// DefaultPingWait is the interval between keepalive pings.
	DefaultPingWait = DefaultPongWait / 2
	// DefaultMaxMessageSize bounds the raw websocket frame size accepted
	// at the transport layer, ahead of the pipeline's own
	// Limits.MaxMessageLength check on the reassembled frame.
	DefaultMaxMessageSize = 1 << 20
)

// Upgrader is a preconfigured websocket.Upgrader. Origin checking is left
// permissive, the way public relays operate; anything stricter belongs in
// a reverse proxy in front of the relay.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// A serves one upgraded websocket connection for the lifetime of the
// underlying TCP connection.
type A struct {
	Engine *pipeline.Engine
	Opts   *pipeline.Options
	// AuthTimeout, when non-zero, closes a connection that hasn't
	// completed NIP-42 authentication within this long of its challenge
	// being sent.
	AuthTimeout time.Duration
}

// Serve upgrades r into a websocket connection and runs it until the
// client disconnects or the server shuts down via ctx.
func (a *A) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if chk.E(err) {
		return
	}

	cctx, cancel := context.WithCancel(ctx)
	challenge := auth.GenerateChallenge()
	sess := session.New(conn, r, a.Opts.AuthRequired, challenge)

	ticker := time.NewTicker(DefaultPingWait)
	defer func() {
		cancel()
		ticker.Stop()
		a.Opts.Registry.Drop(sess)
		_ = conn.Close()
	}()

	conn.SetReadLimit(DefaultMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(DefaultPongWait))
	conn.SetPongHandler(
		func(string) error {
			return conn.SetReadDeadline(time.Now().Add(DefaultPongWait))
		},
	)

	var authDeadline <-chan time.Time
	if a.Opts.AuthRequired {
		log.T.F("requesting auth from %s", sess.RealRemote())
		sess.RequestAuth()
		if _, err = sess.Write(envelope.NewAuthChallenge(challenge).Marshal(nil)); chk.E(err) {
			return
		}
		if a.AuthTimeout > 0 {
			timer := time.NewTimer(a.AuthTimeout)
			defer timer.Stop()
			authDeadline = timer.C
		}
	}

	go a.pinger(cctx, ticker, cancel, conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.readLoop(cctx, sess, conn)
	}()

	select {
	case <-done:
	case <-authDeadline:
		if !sess.IsAuthed() {
			log.T.F("closing unauthenticated connection from %s: auth timeout", sess.RealRemote())
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(4000, "auth-required: timed out"),
				time.Now().Add(DefaultWriteWait),
			)
		}
	case <-ctx.Done():
	}
}

func (a *A) readLoop(ctx context.Context, sess *session.Session, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		typ, message, err := conn.ReadMessage()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
				websocket.CloseAbnormalClosure,
			) {
				log.W.F("unexpected close from %s: %v", sess.RealRemote(), err)
			}
			return
		}
		if typ == websocket.PingMessage {
			_ = sess.WriteMessage(websocket.PongMessage, nil)
			continue
		}
		if typ != websocket.TextMessage {
			continue
		}
		frames := a.Engine.Run(&pipeline.Context{RawFrame: message, Session: sess}, a.Opts)
		for _, f := range frames {
			if _, err = sess.Write(f); chk.T(err) {
				return
			}
		}
	}
}

func (a *A) pinger(ctx context.Context, ticker *time.Ticker, cancel context.CancelFunc, conn *websocket.Conn) {
	defer func() {
		cancel()
		ticker.Stop()
	}()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(
				websocket.PingMessage, nil, time.Now().Add(DefaultWriteWait),
			); err != nil {
				log.E.F("error writing ping: %v; closing websocket", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
