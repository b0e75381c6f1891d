package wamp

import "fmt"

// Session is a client's view of an open WAMP session: the peer used to
// exchange messages with the router, the session ID the router assigned,
// and the details negotiated during HELLO/WELCOME.
type Session struct {
	Peer
	ID      ID
	Realm   URI
	Details Dict
}

// String returns the session ID as a string.
func (s *Session) String() string { return fmt.Sprintf("%d", s.ID) }

// HasRole returns true if the session declared the specified role.  A role
// declared with an empty feature dict still counts as declared.
func (s *Session) HasRole(role string) bool {
	roles := DictChild(s.Details, OptRoles)
	if roles == nil {
		return false
	}
	_, ok := roles[role]
	return ok
}
