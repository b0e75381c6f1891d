package router

import (
	"fmt"

	"github.com/canopyio/canopy/wamp"
)

// SessionState tracks a routed session through its lifecycle.
type SessionState int

const (
	SessionOpening SessionState = iota
	SessionOpen
	SessionClosing
	SessionClosed
)

// Session is one peer's lifetime association with one realm.  There is
// exactly one session per peer handle at any time.  A session is created
// when the peer's HELLO is accepted and destroyed on GOODBYE exchange
// completion, peer disconnect, or abort.
type Session struct {
	wamp.Peer
	ID      wamp.ID
	Realm   wamp.URI
	Details wamp.Dict

	state SessionState
}

// String returns the session ID as a string.
func (s *Session) String() string { return fmt.Sprintf("%d", s.ID) }

// State returns the session's lifecycle state.
func (s *Session) State() SessionState { return s.state }

// HasRole returns true if the session declared the specified role in its
// HELLO details.  A role declared with an empty feature dict still counts
// as declared.
func (s *Session) HasRole(role string) bool {
	roles := wamp.DictChild(s.Details, wamp.OptRoles)
	if roles == nil {
		return false
	}
	_, ok := roles[role]
	return ok
}
