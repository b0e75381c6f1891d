package wamp

import (
	"regexp"
	"strings"
)

// MaxID is the largest valid WAMP ID.  IDs are integers in [1, 2^53-1] so
// that they can be represented without loss of precision in IEEE-754
// doubles, which some languages (e.g. JavaScript) use as their sole number
// type.
const MaxID int64 = 1<<53 - 1

// ID is a WAMP identifier drawn from one of the ID scopes: global (session
// and publication IDs), router (subscription IDs), or session (request IDs
// chosen by peers).
type ID uint64

// Valid returns true if the ID is within the legal WAMP range.
func (id ID) Valid() bool {
	return id >= 1 && id <= ID(MaxID)
}

// URI is a dot-separated identifier naming a realm, topic, procedure, or
// error.  Each component *should* only contain lowercase letters, numbers,
// or underscores; how much of that is enforced depends on the router's
// validation mode.
type URI string

var (
	// strict mode: lowercase letters, digits and underscores only, no empty
	// components, no leading or trailing dot.
	strictURI = regexp.MustCompile(`^([0-9a-z_]+\.)*([0-9a-z_]+)$`)
	// loose mode: any non-empty string without whitespace.
	looseURI = regexp.MustCompile(`^\S+$`)
)

// ValidURI returns true if the URI complies with the formatting rules of
// the selected validation mode.
func (u URI) ValidURI(strict bool) bool {
	if strict {
		return strictURI.MatchString(string(u))
	}
	return looseURI.MatchString(string(u))
}

// ReservedPrefix returns true if the URI is within the namespace reserved
// for the WAMP protocol itself.  Clients may not subscribe or publish to
// reserved URIs; only the router uses them.
func (u URI) ReservedPrefix() bool {
	return strings.HasPrefix(string(u), "wamp.")
}
