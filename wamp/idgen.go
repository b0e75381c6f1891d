package wamp

import (
	"math/rand"
	"time"
)

// IDSet is a set of live IDs used to exclude values from a scope draw.
type IDSet map[ID]struct{}

// IDGen generates pseudo-random IDs for one ID scope.  A scope does not
// track which of its values are live; the caller passes the set of live IDs
// and the generator resamples until it draws a value outside that set.
//
// The router owns one generator for the global scope (session and
// publication IDs) and one for the router scope (subscription IDs).  All
// draws happen on the router goroutine, so IDGen needs no locking.
type IDGen struct {
	rng *rand.Rand
}

// NewIDGen returns a new scope ID generator.
func NewIDGen() *IDGen {
	return &IDGen{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Next returns a random ID in [1, MaxID] that is not present in live.
func (g *IDGen) Next(live IDSet) ID {
	for {
		id := ID(g.rng.Int63n(MaxID) + 1)
		if _, ok := live[id]; !ok {
			return id
		}
	}
}

// RequestIDGen generates the sequential request IDs a peer uses for the
// session scope, starting at 1 and wrapping at MaxID.  Request IDs are
// chosen by peers, not the router; this generator is provided for embedded
// clients and tests.
type RequestIDGen struct {
	next int64
}

// NewRequestIDGen returns a new sequential request ID generator.
func NewRequestIDGen() *RequestIDGen {
	return &RequestIDGen{}
}

// Next returns the next request ID.
func (g *RequestIDGen) Next() ID {
	g.next++
	if g.next > MaxID {
		g.next = 1
	}
	return ID(g.next)
}
