/*
Package router provides the WAMP routing engine: realms, sessions, and the
broker that dispatches publish/subscribe events between peers.
*/
package router

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/canopyio/canopy/stdlog"
	"github.com/canopyio/canopy/wamp"
)

// A Router hosts realms and routes messages between the peers attached to
// them.
type Router interface {
	// AddRealm creates a new realm and adds it to the router.
	AddRealm(wamp.URI) (*Realm, error)

	// Attach associates an inbound peer handle with the router.  The peer
	// has no session until its HELLO is accepted.
	Attach(wamp.Peer) error

	// RealmSessionCount returns the number of sessions attached to the
	// realm, or -1 if the realm does not exist.
	RealmSessionCount(wamp.URI) int

	// Logger returns the logger the router is using.
	Logger() stdlog.StdLog

	// Close stops the router, closes all attached peers, and waits for
	// message processing to stop.
	Close()
}

// router is the single authority for all shared state: realms, sessions,
// subscriptions, publications, and the ID scope generators.  All mutations
// are serialized on one goroutine consuming actionChan; peers run in
// parallel for I/O but serialize at this boundary, which preserves
// per-peer FIFO handling and per-subscription event order.
type router struct {
	realms   map[wamp.URI]*Realm
	peers    map[wamp.Peer]struct{}
	sessions map[wamp.Peer]*Session

	// Live ID sets, one per scope use.  Session and publication IDs are
	// drawn from the global scope, subscription IDs from the router
	// scope; each draw excludes the live values of its own kind.
	sessionIDs wamp.IDSet
	subIDs     wamp.IDSet
	pubIDs     wamp.IDSet

	globalIDGen *wamp.IDGen
	routerIDGen *wamp.IDGen

	actionChan  chan func()
	closingChan chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	stopped     bool

	autoCreateRealms bool
	strictURI        bool
	abortOnViolation bool
	debug            bool

	log stdlog.StdLog
}

// NewRouter creates a router from the given configuration and starts its
// routing goroutine.  At least one realm must be configured unless realm
// auto-creation is enabled.
func NewRouter(config *Config, logger stdlog.StdLog) (Router, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	strict, err := config.strictURI()
	if err != nil {
		return nil, err
	}

	r := &router{
		realms:   map[wamp.URI]*Realm{},
		peers:    map[wamp.Peer]struct{}{},
		sessions: map[wamp.Peer]*Session{},

		sessionIDs: wamp.IDSet{},
		subIDs:     wamp.IDSet{},
		pubIDs:     wamp.IDSet{},

		globalIDGen: wamp.NewIDGen(),
		routerIDGen: wamp.NewIDGen(),

		actionChan:  make(chan func()),
		closingChan: make(chan struct{}),

		autoCreateRealms: config.AutoCreateRealms,
		strictURI:        strict,
		abortOnViolation: config.AbortOnProtocolViolation,
		debug:            config.Debug,

		log: logger,
	}

	uris := config.realmURIs()
	if len(uris) == 0 && !r.autoCreateRealms {
		return nil, errors.New(
			"invalid configuration: no realms, and realm auto-creation disabled")
	}
	for _, uri := range uris {
		if !uri.ValidURI(r.strictURI) {
			return nil, fmt.Errorf(
				"invalid realm URI %v (URI strict checking %v)", uri, r.strictURI)
		}
		r.realms[uri] = newRealm(uri, r)
		logger.Println("added realm:", uri)
	}

	go r.run()
	return r, nil
}

// run is the single goroutine that reads and modifies router state.
func (r *router) run() {
	for action := range r.actionChan {
		action()
	}
}

// submit queues an action for the routing goroutine.  It returns false,
// without running the action, if the router is shutting down.
func (r *router) submit(action func()) bool {
	select {
	case <-r.closingChan:
		return false
	default:
	}
	select {
	case r.actionChan <- action:
		return true
	case <-r.closingChan:
		return false
	}
}

// Logger returns the logger the router is using.
func (r *router) Logger() stdlog.StdLog { return r.log }

// AddRealm creates a new realm and adds it to the router.
func (r *router) AddRealm(uri wamp.URI) (*Realm, error) {
	if !uri.ValidURI(r.strictURI) {
		return nil, fmt.Errorf(
			"invalid realm URI %v (URI strict checking %v)", uri, r.strictURI)
	}
	var realm *Realm
	errChan := make(chan error, 1)
	ok := r.submit(func() {
		if _, exists := r.realms[uri]; exists {
			errChan <- errors.New("realm already exists: " + string(uri))
			return
		}
		realm = newRealm(uri, r)
		r.realms[uri] = realm
		errChan <- nil
	})
	if !ok {
		return nil, errors.New("router is closing")
	}
	if err := <-errChan; err != nil {
		return nil, err
	}
	r.log.Println("added realm:", uri)
	return realm, nil
}

// RealmSessionCount returns the number of sessions attached to the realm,
// or -1 if the realm does not exist.
func (r *router) RealmSessionCount(uri wamp.URI) int {
	count := make(chan int, 1)
	if !r.submit(func() {
		realm, ok := r.realms[uri]
		if !ok {
			count <- -1
			return
		}
		count <- realm.sessionCount
	}) {
		return -1
	}
	return <-count
}

// Attach associates an inbound peer handle with the router and starts
// forwarding the peer's messages to the routing goroutine.  Messages from
// one peer are handled strictly in the order received.
func (r *router) Attach(peer wamp.Peer) error {
	accepted := make(chan bool, 1)
	ok := r.submit(func() {
		if r.stopped {
			accepted <- false
			return
		}
		r.peers[peer] = struct{}{}
		r.wg.Add(1)
		accepted <- true
	})
	if !ok || !<-accepted {
		peer.Send(&wamp.Abort{Details: wamp.Dict{}, Reason: wamp.ErrSystemShutdown})
		peer.Close()
		return errors.New("router is closing, not accepting new peers")
	}

	go func() {
		defer r.wg.Done()
		recvChan := peer.Recv()
		for {
			select {
			case msg, open := <-recvChan:
				if !open {
					r.submit(func() { r.detach(peer) })
					return
				}
				m := msg
				if !r.submit(func() { r.deliver(peer, m) }) {
					return
				}
			case <-r.closingChan:
				return
			}
		}
	}()
	return nil
}

// Close stops the router and waits for message processing to stop.  All
// open sessions are sent a GOODBYE and every attached peer is closed.
func (r *router) Close() {
	r.closeOnce.Do(func() {
		sync := make(chan struct{})
		r.actionChan <- func() {
			r.stopped = true
			for _, sess := range r.sessions {
				sess.Send(&wamp.Goodbye{
					Details: wamp.Dict{},
					Reason:  wamp.CloseSystemShutdown,
				})
			}
			for peer := range r.peers {
				peer.Close()
				r.detach(peer)
			}
			sync <- struct{}{}
		}
		<-sync
		close(r.closingChan)
		r.wg.Wait()
		close(r.actionChan)
	})
}

// deliver routes one inbound decoded message through the session state
// machine.  It runs on the routing goroutine.
func (r *router) deliver(peer wamp.Peer, msg wamp.Message) {
	if r.stopped {
		return
	}
	sess, open := r.sessions[peer]
	if r.debug {
		r.log.Printf("deliver %s: %+v", msg.MessageType(), msg)
	}

	switch msg := msg.(type) {
	case *wamp.Hello:
		if open {
			// HELLO on an already-open session is dropped: no reply, the
			// session and its roles unchanged.
			return
		}
		r.welcome(peer, msg)

	case *wamp.Goodbye:
		if !open {
			// GOODBYE before HELLO is dropped; a later HELLO on the same
			// transport still opens a session.
			return
		}
		r.goodbye(peer, sess)

	// Broker-delegated messages are silently dropped when no session is
	// open for the peer.
	case *wamp.Publish:
		if open {
			r.realms[sess.Realm].broker.publish(sess, msg)
		}
	case *wamp.Subscribe:
		if open {
			r.realms[sess.Realm].broker.subscribe(sess, msg)
		}
	case *wamp.Unsubscribe:
		if open {
			r.realms[sess.Realm].broker.unsubscribe(sess, msg)
		}

	default:
		r.violation(peer, msg)
	}
}

// welcome runs the HELLO side of session establishment: realm lookup or
// auto-creation, session ID allocation, and the WELCOME reply.
func (r *router) welcome(peer wamp.Peer, hello *wamp.Hello) {
	realm, ok := r.realms[hello.Realm]
	if !ok {
		if !r.autoCreateRealms || !hello.Realm.ValidURI(r.strictURI) {
			// The session is never created and realms are unchanged.
			r.send(peer, &wamp.Abort{
				Details: wamp.Dict{wamp.OptMessage: fmt.Sprintf(
					"The realm '%s' does not exist.", hello.Realm)},
				Reason: wamp.ErrNoSuchRealm,
			})
			return
		}
		realm = newRealm(hello.Realm, r)
		r.realms[hello.Realm] = realm
		r.log.Println("auto-created realm:", hello.Realm)
	}

	details := wamp.NormalizeDict(hello.Details)
	if details == nil {
		details = wamp.Dict{}
	}

	id := r.globalIDGen.Next(r.sessionIDs)
	r.sessionIDs[id] = struct{}{}
	sess := &Session{
		Peer:    peer,
		ID:      id,
		Realm:   realm.uri,
		Details: details,
		state:   SessionOpen,
	}
	r.sessions[peer] = sess
	realm.sessionCount++
	if r.debug {
		r.log.Println("created session", sess, "in realm", realm.uri)
	}

	welcomeDetails := wamp.Dict{
		wamp.OptRoles: wamp.Dict{
			wamp.RoleBroker: realm.broker.features(),
		},
	}
	r.send(peer, &wamp.Welcome{ID: id, Details: welcomeDetails})
}

// goodbye completes the GOODBYE exchange and destroys the session.  The
// transport stays attached; a subsequent HELLO may open a new session.
func (r *router) goodbye(peer wamp.Peer, sess *Session) {
	sess.state = SessionClosing
	r.send(peer, &wamp.Goodbye{
		Details: wamp.Dict{},
		Reason:  wamp.CloseGoodbyeAndOut,
	})
	r.destroySession(peer, sess)
}

// detach is called when a peer's transport closes.  It is idempotent: a
// detach after the peer is gone is a no-op.
func (r *router) detach(peer wamp.Peer) {
	if _, ok := r.peers[peer]; !ok {
		return
	}
	delete(r.peers, peer)
	if sess, ok := r.sessions[peer]; ok {
		r.destroySession(peer, sess)
	}
}

// destroySession purges a session: it is removed from the session table,
// removed from every subscription containing its peer (deleting any
// subscription left empty), and its realm's session count is decremented.
func (r *router) destroySession(peer wamp.Peer, sess *Session) {
	delete(r.sessions, peer)
	delete(r.sessionIDs, sess.ID)
	realm := r.realms[sess.Realm]
	realm.broker.removeSession(sess)
	realm.sessionCount--
	sess.state = SessionClosed
	if r.debug {
		r.log.Println("closed session", sess, "in realm", realm.uri)
	}
}

// violation handles a message that is unexpected in the peer's current
// state: dropped by default, answered with an ABORT and a transport close
// when so configured.
func (r *router) violation(peer wamp.Peer, msg wamp.Message) {
	if r.abortOnViolation {
		peer.Send(&wamp.Abort{
			Details: wamp.Dict{},
			Reason:  wamp.ErrProtocolViolation,
		})
		peer.Close()
		return
	}
	r.log.Println("dropped unexpected message:", msg.MessageType())
}

// send writes a message to a peer without blocking the routing goroutine.
// The peer may no longer be writable; on failure the delivery is dropped
// and the peer is scheduled for disconnect.
func (r *router) send(peer wamp.Peer, msg wamp.Message) {
	if err := peer.Send(msg); err != nil {
		if !wamp.IsGoodbyeAck(msg) {
			r.log.Println("send to peer failed, scheduling disconnect:", err)
		}
		peer.Close()
	}
}
