package transport

import (
	"sync"
	"time"

	"github.com/canopyio/canopy/stdlog"
	"github.com/canopyio/canopy/transport/serialize"
	"github.com/canopyio/canopy/wamp"
	"github.com/gorilla/websocket"
)

const (
	// WAMP uses this WebSocket subprotocol identifier for unbatched JSON.
	JSONWebsocketProtocol = "wamp.2.json"

	defaultOutQueueSize = 160
	ctrlTimeout         = 5 * time.Second
)

// websocketPeer implements the wamp.Peer interface, connecting the Send
// and Recv methods to a websocket.  One WAMP message travels per text
// frame; binary frames and undecodable frames are protocol errors that
// close the transport.
type websocketPeer struct {
	conn       *websocket.Conn
	serializer serialize.Serializer

	// Signals that Close was called locally.
	closed    chan struct{}
	closeOnce sync.Once

	// Channels communicating with the router.
	rd chan wamp.Message
	wr chan wamp.Message

	// Stops the send handler without closing the wr channel.
	stopSend chan struct{}

	metrics *Metrics
	log     stdlog.StdLog
}

// NewWebsocketPeer creates a websocket peer from an existing websocket
// connection.  This is used for handling clients that connected to the
// router's websocket server.
//
// outQueueSize is the maximum number of messages that can be queued to be
// written to the websocket.  Once the queue has reached this limit, Send
// returns an error so the router can drop the delivery and schedule the
// peer for disconnect.  A value < 1 uses the default size.
func NewWebsocketPeer(conn *websocket.Conn, serializer serialize.Serializer, outQueueSize int, log stdlog.StdLog) wamp.Peer {
	if outQueueSize < 1 {
		outQueueSize = defaultOutQueueSize
	}
	w := &websocketPeer{
		conn:       conn,
		serializer: serializer,
		closed:     make(chan struct{}),
		stopSend:   make(chan struct{}),

		// Messages read from the websocket can be handled immediately,
		// since they have already traveled over the socket; the read
		// channel does not need to be more than size 1.
		rd: make(chan wamp.Message, 1),

		// The channel for messages being written to the websocket is
		// large enough to avoid blocking on a slow socket.
		wr: make(chan wamp.Message, outQueueSize),

		metrics: NewMetrics("websocket"),
		log:     log,
	}
	go w.recvHandler()
	go w.sendHandler()
	return w
}

func (w *websocketPeer) Recv() <-chan wamp.Message { return w.rd }

// Send enqueues a message to be written to the websocket.  An error is
// returned without blocking if the outbound queue is full.
func (w *websocketPeer) Send(msg wamp.Message) error {
	select {
	case w.wr <- msg:
		return nil
	default:
		return errOutQueueFull
	}
}

var errOutQueueFull = websocketError("peer outbound queue full")

type websocketError string

func (e websocketError) Error() string { return string(e) }

// Close closes the websocket, which causes the receive handler to exit and
// close the channel returned from Recv().  Close is idempotent.
func (w *websocketPeer) Close() {
	w.closeOnce.Do(func() {
		closeMsg := websocket.FormatCloseMessage(
			websocket.CloseNormalClosure, "goodbye")
		err := w.conn.WriteControl(websocket.CloseMessage, closeMsg,
			time.Now().Add(ctrlTimeout))
		if err != nil {
			w.log.Println("error sending close message:", err)
		}
		close(w.closed)
		if err = w.conn.Close(); err != nil {
			w.log.Println("error closing connection:", err)
		}
	})
}

// sendHandler pulls messages from the write channel and pushes them to the
// websocket as text frames.
func (w *websocketPeer) sendHandler() {
	for {
		select {
		case msg, open := <-w.wr:
			if !open {
				return
			}
			b, err := w.serializer.Serialize(msg)
			if err != nil {
				w.log.Println("error serializing message:", err)
				continue
			}
			if err = w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				if !wamp.IsGoodbyeAck(msg) {
					w.log.Println("error writing to websocket:", err)
				}
				continue
			}
			w.metrics.CountOutgoing(len(b))
		case <-w.stopSend:
			return
		}
	}
}

// recvHandler pulls messages from the websocket and pushes them to the
// read channel.  A binary frame or a frame that fails to decode is a fatal
// protocol error: the transport is closed with no in-band reply, since the
// peer may not be able to parse one.
func (w *websocketPeer) recvHandler() {
	for {
		msgType, b, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				// Close was called locally; not an error.
			default:
				w.log.Println("error reading from peer:", err)
				w.conn.Close()
			}
			break
		}

		if msgType != websocket.TextMessage {
			w.log.Println("protocol error: non-text frame from peer")
			w.conn.Close()
			break
		}
		w.metrics.CountIncoming(len(b))

		msg, err := w.serializer.Deserialize(b)
		if err != nil {
			w.log.Println("protocol error: cannot decode peer message:", err)
			w.conn.Close()
			break
		}
		// It is OK to block here: routing is quick compared to the time
		// to transfer a message over the websocket, and a blocked client
		// does not block other clients.
		w.rd <- msg
	}
	// Close the read channel so the router detaches the peer.
	close(w.rd)
	// Stop the send handler without closing the write channel.
	close(w.stopSend)
}
