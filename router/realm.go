package router

import "github.com/canopyio/canopy/wamp"

// A Realm is a WAMP routing and administrative domain.  Messages are only
// routed within a realm, and every session is attached to exactly one.  A
// realm is created at router boot from configuration, or lazily on first
// HELLO when auto-create is enabled, and lives until router shutdown; it
// is never deleted while any session references it.
type Realm struct {
	uri wamp.URI

	// Each realm has its own broker with its own subscription tables.
	broker *broker

	// Number of sessions currently attached.  Mutated only on the router
	// goroutine.
	sessionCount int
}

func newRealm(uri wamp.URI, r *router) *Realm {
	return &Realm{
		uri:    uri,
		broker: newBroker(r),
	}
}

// URI returns the URI identifying the realm.
func (rlm *Realm) URI() wamp.URI { return rlm.uri }
