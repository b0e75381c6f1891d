package transport

import (
	"errors"
	"sync"

	"github.com/canopyio/canopy/wamp"
)

// linkedPeersOutQueueSize is the size of the channel buffering messages
// from router to client.  It should be large enough to prevent blocking
// while waiting for a slow client; if the client still falls behind, the
// message is dropped and the send returns an error so the router can
// schedule the client for disconnect.
const linkedPeersOutQueueSize = 64

// LinkedPeers creates two connected peers.  Messages sent to one peer
// appear in the Recv of the other.
//
// This is used for connecting embedded client sessions to the router
// without a socket, and for creating in-process test clients.
func LinkedPeers() (client wamp.Peer, router wamp.Peer) {
	// The router-to-client channel is buffered so the router does not
	// block on a slow client.
	rToC := make(chan wamp.Message, linkedPeersOutQueueSize)

	// Messages read by the router can be handled immediately, so the
	// client-to-router channel does not need to be more than size 1.
	cToR := make(chan wamp.Message, 1)

	// Router reads from and writes to the client.
	router = &localPeer{rd: cToR, wr: rToC, dropWhenFull: true}
	// Client reads from and writes to the router.
	client = &localPeer{rd: rToC, wr: cToR}

	return client, router
}

// localPeer implements wamp.Peer over a pair of in-process channels.
type localPeer struct {
	wr chan<- wamp.Message
	rd <-chan wamp.Message

	// The router side never blocks on its peer; the client side may,
	// since routing is quick and a blocked client does not block other
	// clients.
	dropWhenFull bool

	closeOnce sync.Once
}

// Recv returns the channel this peer reads incoming messages from.
func (p *localPeer) Recv() <-chan wamp.Message { return p.rd }

// Send enqueues a message for the other side of the link.
func (p *localPeer) Send(msg wamp.Message) error {
	if p.dropWhenFull {
		select {
		case p.wr <- msg:
			return nil
		default:
			return errors.New("peer outbound queue full, dropped " +
				msg.MessageType().String())
		}
	}
	p.wr <- msg
	return nil
}

// Close closes the outgoing channel, waking any readers waiting on data
// from this peer.  Close is idempotent.
func (p *localPeer) Close() {
	p.closeOnce.Do(func() { close(p.wr) })
}
