package router

import (
	"fmt"
	"testing"
	"time"

	"github.com/canopyio/canopy/transport"
	"github.com/canopyio/canopy/wamp"
	"github.com/fortytw2/leaktest"
)

const (
	testRealm = wamp.URI("canopy.test.realm")
	testTopic = wamp.URI("canopy.test.event")
)

var clientRoles = wamp.Dict{
	"roles": wamp.Dict{
		"subscriber": wamp.Dict{},
		"publisher":  wamp.Dict{},
	},
}

func newTestRouter() (Router, error) {
	config := &Config{
		Realms: []wamp.URI{testRealm},
	}
	return NewRouter(config, nil)
}

func testClientInRealm(r Router, realm wamp.URI) (*wamp.Session, error) {
	client, server := transport.LinkedPeers()
	if err := r.Attach(server); err != nil {
		return nil, err
	}
	client.Send(&wamp.Hello{Realm: realm, Details: clientRoles})

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		return nil, fmt.Errorf("error waiting for welcome: %s", err)
	}
	welcome, ok := msg.(*wamp.Welcome)
	if !ok {
		return nil, fmt.Errorf("expected %v, got %v", wamp.WELCOME,
			msg.MessageType())
	}

	return &wamp.Session{
		Peer:    client,
		ID:      welcome.ID,
		Realm:   realm,
		Details: welcome.Details,
	}, nil
}

func testClient(r Router) (*wamp.Session, error) {
	return testClientInRealm(r, testRealm)
}

func TestHandshake(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	cli, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	if !cli.ID.Valid() {
		t.Fatal("invalid session ID in welcome")
	}
	roles := wamp.DictChild(cli.Details, "roles")
	if roles == nil {
		t.Fatal("welcome details missing router roles")
	}
	if _, ok := roles[wamp.RoleBroker]; !ok {
		t.Fatal("router did not advertise the broker role")
	}
	if n := r.RealmSessionCount(testRealm); n != 1 {
		t.Fatal("expected 1 session in realm, got", n)
	}

	cli.Send(&wamp.Goodbye{Details: wamp.Dict{}})
	msg, err := wamp.RecvTimeout(cli, time.Second)
	if err != nil {
		t.Fatal("no goodbye message after sending goodbye:", err)
	}
	gb, ok := msg.(*wamp.Goodbye)
	if !ok {
		t.Fatal("expected GOODBYE, received:", msg.MessageType())
	}
	if gb.Reason != wamp.CloseGoodbyeAndOut {
		t.Fatal("wrong GOODBYE reason:", gb.Reason)
	}
	if n := r.RealmSessionCount(testRealm); n != 0 {
		t.Fatal("expected 0 sessions in realm after goodbye, got", n)
	}
}

func TestHandshakeBadRealm(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	if err = r.Attach(server); err != nil {
		t.Fatal(err)
	}
	client.Send(&wamp.Hello{Realm: "unknown.realm", Details: clientRoles})

	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for response to HELLO")
	}
	abort, ok := msg.(*wamp.Abort)
	if !ok {
		t.Fatal("expected ABORT after bad handshake, got:", msg.MessageType())
	}
	if abort.Reason != wamp.ErrNoSuchRealm {
		t.Fatal("wrong ABORT reason:", abort.Reason)
	}
	want := "The realm 'unknown.realm' does not exist."
	if got := wamp.OptionString(abort.Details, "message"); got != want {
		t.Fatalf("wrong ABORT message: %q", got)
	}
	// No session was created for the peer.
	if n := r.RealmSessionCount(testRealm); n != 0 {
		t.Fatal("expected 0 sessions, got", n)
	}
	// The unknown realm was not created.
	if n := r.RealmSessionCount("unknown.realm"); n != -1 {
		t.Fatal("unknown realm should not exist")
	}
	client.Close()
}

func TestAutoCreateRealm(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := NewRouter(&Config{AutoCreateRealms: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	cli, err := testClientInRealm(r, "made.on.demand")
	if err != nil {
		t.Fatal(err)
	}
	if n := r.RealmSessionCount("made.on.demand"); n != 1 {
		t.Fatal("expected auto-created realm with 1 session, got", n)
	}
	cli.Close()
}

func TestRepeatedHello(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	cli, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}

	// HELLO on an already-open session: no reply, session count still 1.
	cli.Send(&wamp.Hello{Realm: testRealm, Details: clientRoles})
	if msg, err := wamp.RecvTimeout(cli, 100*time.Millisecond); err == nil {
		t.Fatal("expected no reply to repeated HELLO, got:", msg.MessageType())
	}
	if n := r.RealmSessionCount(testRealm); n != 1 {
		t.Fatal("expected 1 session, got", n)
	}

	// The original session still works.
	cli.Send(&wamp.Subscribe{Request: 1, Topic: testTopic})
	msg, err := wamp.RecvTimeout(cli, time.Second)
	if err != nil {
		t.Fatal("session is no longer serviced after repeated HELLO:", err)
	}
	if _, ok := msg.(*wamp.Subscribed); !ok {
		t.Fatal("expected SUBSCRIBED, got:", msg.MessageType())
	}
}

func TestGoodbyeBeforeHello(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	if err = r.Attach(server); err != nil {
		t.Fatal(err)
	}

	// GOODBYE with no session is silently dropped.
	client.Send(&wamp.Goodbye{Details: wamp.Dict{}})
	if msg, err := wamp.RecvTimeout(client, 100*time.Millisecond); err == nil {
		t.Fatal("expected no reply to GOODBYE before HELLO, got:",
			msg.MessageType())
	}

	// A subsequent HELLO still produces WELCOME.
	client.Send(&wamp.Hello{Realm: testRealm, Details: clientRoles})
	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal("no reply to HELLO after dropped GOODBYE:", err)
	}
	if _, ok := msg.(*wamp.Welcome); !ok {
		t.Fatal("expected WELCOME, got:", msg.MessageType())
	}
}

func TestSessionReopenAfterGoodbye(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	cli, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	cli.Send(&wamp.Goodbye{Details: wamp.Dict{}})
	if _, err = wamp.RecvTimeout(cli, time.Second); err != nil {
		t.Fatal("no goodbye reply:", err)
	}

	// The transport is still attached; HELLO opens a fresh session.
	cli.Send(&wamp.Hello{Realm: testRealm, Details: clientRoles})
	msg, err := wamp.RecvTimeout(cli, time.Second)
	if err != nil {
		t.Fatal("no welcome after re-hello:", err)
	}
	welcome, ok := msg.(*wamp.Welcome)
	if !ok {
		t.Fatal("expected WELCOME, got:", msg.MessageType())
	}
	if welcome.ID == cli.ID {
		t.Fatal("new session should have a new ID")
	}
	if n := r.RealmSessionCount(testRealm); n != 1 {
		t.Fatal("expected 1 session, got", n)
	}
}

func TestProtocolViolationDrop(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	if err = r.Attach(server); err != nil {
		t.Fatal(err)
	}

	// SUBSCRIBE with no session: silently dropped by the session guard.
	client.Send(&wamp.Subscribe{Request: 1, Topic: testTopic})
	if msg, err := wamp.RecvTimeout(client, 100*time.Millisecond); err == nil {
		t.Fatal("expected no reply, got:", msg.MessageType())
	}

	// An unexpected non-broker message is dropped by default.
	client.Send(&wamp.Welcome{ID: 1, Details: wamp.Dict{}})
	if msg, err := wamp.RecvTimeout(client, 100*time.Millisecond); err == nil {
		t.Fatal("expected no reply, got:", msg.MessageType())
	}

	// The transport is still usable.
	client.Send(&wamp.Hello{Realm: testRealm, Details: clientRoles})
	if _, err = wamp.RecvTimeout(client, time.Second); err != nil {
		t.Fatal("transport no longer serviced after dropped violation:", err)
	}
}

func TestProtocolViolationAbort(t *testing.T) {
	defer leaktest.Check(t)()
	config := &Config{
		Realms:                   []wamp.URI{testRealm},
		AbortOnProtocolViolation: true,
	}
	r, err := NewRouter(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, server := transport.LinkedPeers()
	if err = r.Attach(server); err != nil {
		t.Fatal(err)
	}
	client.Send(&wamp.Welcome{ID: 1, Details: wamp.Dict{}})
	msg, err := wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for ABORT")
	}
	abort, ok := msg.(*wamp.Abort)
	if !ok {
		t.Fatal("expected ABORT, received:", msg.MessageType())
	}
	if abort.Reason != wamp.ErrProtocolViolation {
		t.Fatal("expected reason to be", wamp.ErrProtocolViolation)
	}
}

func TestRouterSubscribePublish(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	sub1, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	sub2, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}

	sub1.Send(&wamp.Subscribe{Request: 1, Topic: testTopic})
	msg, err := wamp.RecvTimeout(sub1, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for SUBSCRIBED")
	}
	subMsg, ok := msg.(*wamp.Subscribed)
	if !ok {
		t.Fatal("expected SUBSCRIBED, got:", msg.MessageType())
	}
	subscriptionID := subMsg.Subscription

	sub2.Send(&wamp.Subscribe{Request: 7, Topic: testTopic})
	msg, err = wamp.RecvTimeout(sub2, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for SUBSCRIBED")
	}
	if msg.(*wamp.Subscribed).Subscription != subscriptionID {
		t.Fatal("subscription was not coalesced across sessions")
	}

	pub.Send(&wamp.Publish{
		Request:   3,
		Options:   wamp.Dict{},
		Topic:     testTopic,
		Arguments: wamp.List{"hi"},
	})

	for _, sub := range []*wamp.Session{sub1, sub2} {
		msg, err = wamp.RecvTimeout(sub, time.Second)
		if err != nil {
			t.Fatal("timed out waiting for EVENT")
		}
		event, ok := msg.(*wamp.Event)
		if !ok {
			t.Fatal("expected EVENT, got:", msg.MessageType())
		}
		if event.Subscription != subscriptionID {
			t.Fatal("wrong subscription ID in event")
		}
		if len(event.Arguments) != 1 || event.Arguments[0] != "hi" {
			t.Fatal("wrong event payload")
		}
	}

	// The publisher receives nothing without acknowledge.
	if msg, err := wamp.RecvTimeout(pub, 100*time.Millisecond); err == nil {
		t.Fatal("publisher received unexpected message:", msg.MessageType())
	}

	// Same publish with acknowledge also delivers PUBLISHED to the
	// publisher, after the fan-out.
	pub.Send(&wamp.Publish{
		Request: 4,
		Options: wamp.Dict{"acknowledge": true},
		Topic:   testTopic,
	})
	msg, err = wamp.RecvTimeout(pub, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for PUBLISHED")
	}
	pubMsg, ok := msg.(*wamp.Published)
	if !ok {
		t.Fatal("expected PUBLISHED, got:", msg.MessageType())
	}
	if pubMsg.Request != 4 {
		t.Fatal("wrong request ID in PUBLISHED")
	}
	msg, err = wamp.RecvTimeout(sub1, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for EVENT")
	}
	if msg.(*wamp.Event).Publication != pubMsg.Publication {
		t.Fatal("EVENT and PUBLISHED publication IDs differ")
	}
}

func TestDisconnectPurgesSubscriptions(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	subA, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	subB, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}

	subA.Send(&wamp.Subscribe{Request: 1, Topic: testTopic})
	if _, err = wamp.RecvTimeout(subA, time.Second); err != nil {
		t.Fatal(err)
	}
	subB.Send(&wamp.Subscribe{Request: 2, Topic: testTopic})
	if _, err = wamp.RecvTimeout(subB, time.Second); err != nil {
		t.Fatal(err)
	}

	// subA disconnects mid-session; the subscription's set becomes {subB}.
	subA.Close()
	// Wait for the router to observe the detach.
	for i := 0; i < 100 && r.RealmSessionCount(testRealm) != 2; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if n := r.RealmSessionCount(testRealm); n != 2 {
		t.Fatal("expected 2 sessions after disconnect, got", n)
	}

	pub.Send(&wamp.Publish{Request: 3, Options: wamp.Dict{}, Topic: testTopic})
	msg, err := wamp.RecvTimeout(subB, time.Second)
	if err != nil {
		t.Fatal("remaining subscriber did not receive EVENT")
	}
	if _, ok := msg.(*wamp.Event); !ok {
		t.Fatal("expected EVENT, got:", msg.MessageType())
	}

	// subB also disconnects; the subscription is removed entirely and a
	// later publish produces no events and still acknowledges.
	subB.Close()
	for i := 0; i < 100 && r.RealmSessionCount(testRealm) != 1; i++ {
		time.Sleep(10 * time.Millisecond)
	}

	pub.Send(&wamp.Publish{
		Request: 4,
		Options: wamp.Dict{"acknowledge": true},
		Topic:   testTopic,
	})
	msg, err = wamp.RecvTimeout(pub, time.Second)
	if err != nil {
		t.Fatal("timed out waiting for PUBLISHED")
	}
	if _, ok := msg.(*wamp.Published); !ok {
		t.Fatal("expected PUBLISHED, got:", msg.MessageType())
	}
}

func TestAddRealm(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	realm, err := r.AddRealm("canopy.test.realm2")
	if err != nil {
		t.Fatal(err)
	}
	if realm.URI() != "canopy.test.realm2" {
		t.Fatal("wrong realm URI")
	}
	if _, err = r.AddRealm("canopy.test.realm2"); err == nil {
		t.Fatal("expected error adding duplicate realm")
	}

	cli, err := testClientInRealm(r, "canopy.test.realm2")
	if err != nil {
		t.Fatal(err)
	}
	if n := r.RealmSessionCount("canopy.test.realm2"); n != 1 {
		t.Fatal("expected 1 session in new realm, got", n)
	}
	// Realms do not share subscriptions: a publish in the second realm is
	// not seen by subscribers in the first.
	other, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}
	other.Send(&wamp.Subscribe{Request: 1, Topic: testTopic})
	if _, err = wamp.RecvTimeout(other, time.Second); err != nil {
		t.Fatal(err)
	}
	cli.Send(&wamp.Publish{Request: 2, Options: wamp.Dict{}, Topic: testTopic})
	if msg, err := wamp.RecvTimeout(other, 100*time.Millisecond); err == nil {
		t.Fatal("event crossed realms:", msg.MessageType())
	}
}

func TestConfigErrors(t *testing.T) {
	if _, err := NewRouter(&Config{}, nil); err == nil {
		t.Fatal("expected error for no realms without auto-create")
	}
	config := &Config{
		Realms:         []wamp.URI{"ok.realm"},
		ValidationMode: "fussy",
	}
	if _, err := NewRouter(config, nil); err == nil {
		t.Fatal("expected error for unrecognized validation mode")
	}
	config = &Config{
		Realms:         []wamp.URI{"Bad Realm"},
		ValidationMode: ValidationModeStrict,
	}
	if _, err := NewRouter(config, nil); err == nil {
		t.Fatal("expected error for invalid realm URI")
	}
}

func TestRouterClose(t *testing.T) {
	defer leaktest.Check(t)()
	r, err := newTestRouter()
	if err != nil {
		t.Fatal(err)
	}

	cli, err := testClient(r)
	if err != nil {
		t.Fatal(err)
	}

	r.Close()
	msg, err := wamp.RecvTimeout(cli, time.Second)
	if err != nil {
		t.Fatal("expected GOODBYE on router close:", err)
	}
	gb, ok := msg.(*wamp.Goodbye)
	if !ok {
		t.Fatal("expected GOODBYE, got:", msg.MessageType())
	}
	if gb.Reason != wamp.CloseSystemShutdown {
		t.Fatal("wrong GOODBYE reason:", gb.Reason)
	}

	// A closed router refuses new peers.
	client, server := transport.LinkedPeers()
	if err = r.Attach(server); err == nil {
		t.Fatal("expected error attaching to closed router")
	}
	msg, err = wamp.RecvTimeout(client, time.Second)
	if err != nil {
		t.Fatal("expected ABORT from closed router:", err)
	}
	if _, ok := msg.(*wamp.Abort); !ok {
		t.Fatal("expected ABORT, got:", msg.MessageType())
	}

	// Close is idempotent.
	r.Close()
}
