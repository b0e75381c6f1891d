package wamp

import (
	"errors"
	"time"
)

// Peer is the handle through which the router communicates with one
// endpoint.  The transport adapter owns the underlying connection; the
// router holds the handle by reference and must tolerate send failure.
type Peer interface {
	// Send enqueues the message for delivery to the peer without blocking.
	// An error is returned if the peer's outbound queue is full or the
	// peer is no longer writable; the caller decides whether to drop the
	// message or schedule the peer for disconnect.
	Send(Message) error

	// Recv returns the channel of messages from the peer.  The channel is
	// closed when the peer disconnects.
	Recv() <-chan Message

	// Close closes the peer connection.  A websocket peer also closes the
	// channel returned from its own Recv(); one of a pair of linked local
	// peers closes the channel its partner receives from.
	Close()
}

// RecvTimeout receives a message from a peer within the specified time.
func RecvTimeout(p Peer, t time.Duration) (Message, error) {
	select {
	case msg, open := <-p.Recv():
		if !open {
			return nil, errors.New("receive channel closed")
		}
		return msg, nil
	case <-time.After(t):
		return nil, errors.New("timeout waiting for message")
	}
}
