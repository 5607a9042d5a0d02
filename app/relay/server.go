// Package relay wires the relay's HTTP surface: the single "/" endpoint
// that dispatches between a websocket upgrade, the NIP-11 information
// document, and the CORS preflight response, matching the teacher's
// app/realy/server.go dispatch shape.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"corvid.dev/chk"
	"corvid.dev/encoders/relayinfo"
	"corvid.dev/log"
	"corvid.dev/protocol/socketapi"
)

// corsOptions pins the exact CORS response the relay's root endpoint
// promises: any origin, any header, and only GET/OPTIONS since "/" never
// accepts writes outside the websocket upgrade itself.
var corsOptions = cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	AllowedHeaders: []string{"*"},
}

// Server is the relay's HTTP listener: it routes "/" to a websocket
// upgrade or the NIP-11 document, and delegates everything else to the
// chi mux so future REST endpoints have somewhere to live.
type Server struct {
	Ctx    context.Context
	Cancel context.CancelFunc
	WG     *sync.WaitGroup

	Info *relayinfo.T
	Sock *socketapi.A

	Addr       string
	mux        *chi.Mux
	httpServer *http.Server
}

// New builds a Server. sock's Engine/Opts must already be wired to the
// store and registry the relay process constructed.
func New(ctx context.Context, cancel context.CancelFunc, addr string, info *relayinfo.T, sock *socketapi.A) *Server {
	s := &Server{
		Ctx: ctx, Cancel: cancel, WG: &sync.WaitGroup{},
		Addr: addr, Info: info, Sock: sock,
		mux: chi.NewRouter(),
	}
	return s
}

// ServeHTTP implements the relay's HTTP handler: websocket upgrade and
// NIP-11 document at "/", everything else routed through the chi mux
// (and 404 by default). A CORS preflight OPTIONS request to "/" is
// answered here directly with 204 and the allow headers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Header.Get("Upgrade") == "websocket" {
			s.Sock.Serve(s.Ctx, w, r)
			return
		}
		if r.Header.Get("Accept") == "application/nostr+json" {
			s.handleRelayInfo(w, r)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRelayInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/nostr+json")
	log.T.F("serving relay information document to %s", r.RemoteAddr)
	if err := json.NewEncoder(w).Encode(s.Info); chk.E(err) {
	}
}

// Start listens on host:port and serves until Shutdown is called;
// canceling the server's context alone does not stop it.
func (s *Server) Start(host string, port int) (err error) {
	s.WG.Add(1)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var ln net.Listener
	if ln, err = net.Listen("tcp", addr); chk.E(err) {
		s.WG.Done()
		return
	}
	s.httpServer = &http.Server{
		Handler:           cors.New(corsOptions).Handler(s),
		Addr:              addr,
		ReadHeaderTimeout: 7 * time.Second,
		IdleTimeout:       28 * time.Second,
	}
	log.I.F("listening on http://%s", addr)
	if err = s.httpServer.Serve(ln); errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return
}

// Shutdown cancels the server's context and gracefully closes its
// listener.
func (s *Server) Shutdown() {
	log.W.Ln("shutting down relay")
	s.Cancel()
	if s.httpServer != nil {
		chk.E(s.httpServer.Shutdown(context.Background()))
	}
	s.WG.Done()
}
