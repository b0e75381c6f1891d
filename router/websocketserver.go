package router

import (
	"io"
	"net"
	"net/http"

	"github.com/canopyio/canopy/stdlog"
	"github.com/canopyio/canopy/transport"
	"github.com/canopyio/canopy/transport/serialize"
	"github.com/gorilla/websocket"
)

// WebsocketServer handles websocket connections for a router.  It speaks
// the wamp.2.json subprotocol: one WAMP message per text frame,
// JSON-serialized.
type WebsocketServer struct {
	// Upgrader is exported so that embedders can tune origin checking and
	// buffer sizes before serving.
	Upgrader *websocket.Upgrader

	// OutQueueSize is the maximum number of messages queued to be written
	// to a peer's websocket before deliveries to that peer are dropped.
	// Zero uses the transport default.
	OutQueueSize int

	router Router
	log    stdlog.StdLog
}

// NewWebsocketServer takes a router instance and creates a new websocket
// server.  To run the server, call its ListenAndServe method:
//
//	s := NewWebsocketServer(r)
//	closer, err := s.ListenAndServe(address)
//
// Or use the ListenAndServe functions provided by net/http, since
// WebsocketServer implements the http.Handler interface:
//
//	server := &http.Server{Handler: NewWebsocketServer(r), Addr: address}
//	server.ListenAndServe()
func NewWebsocketServer(r Router) *WebsocketServer {
	return &WebsocketServer{
		Upgrader: &websocket.Upgrader{
			Subprotocols: []string{transport.JSONWebsocketProtocol},
		},
		router: r,
		log:    r.Logger(),
	}
}

// ListenAndServe listens on the specified TCP address and starts a
// goroutine that accepts new client connections until the returned
// io.Closer is closed.
func (s *WebsocketServer) ListenAndServe(address string) (io.Closer, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		s.log.Print(err)
		return nil, err
	}

	server := &http.Server{
		Handler: s,
		Addr:    l.Addr().String(),
	}
	go server.Serve(l)
	return l, nil
}

// ServeHTTP handles HTTP connections, upgrading each to a websocket and
// attaching it to the router as a peer.  A handshake that does not offer
// the wamp.2.json subprotocol is rejected with HTTP 400.
func (s *WebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !offersProtocol(r, transport.JSONWebsocketProtocol) {
		http.Error(w, "missing required subprotocol: "+
			transport.JSONWebsocketProtocol, http.StatusBadRequest)
		return
	}
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading to websocket connection:", err)
		return
	}

	peer := transport.NewWebsocketPeer(conn, &serialize.JSONSerializer{},
		s.OutQueueSize, s.log)
	if err := s.router.Attach(peer); err != nil {
		s.log.Println("error attaching to router:", err)
	}
}

// offersProtocol reports whether the handshake request offered the given
// websocket subprotocol.
func offersProtocol(r *http.Request, proto string) bool {
	for _, offered := range websocket.Subprotocols(r) {
		if offered == proto {
			return true
		}
	}
	return false
}
