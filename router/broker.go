package router

import (
	"fmt"

	"github.com/canopyio/canopy/wamp"
)

// subscription coalesces all peers subscribed to one topic in one realm.
// Its subscriber set is never empty: a subscription losing its last
// subscriber is deleted.
type subscription struct {
	id          wamp.ID
	topic       wamp.URI
	subscribers map[*Session]struct{}
}

// broker routes PUBLISH messages to EVENT fan-out and owns the
// subscription tables of one realm.  It is a submodule of the router:
// every method runs on the router goroutine and shares the router's ID
// scopes, so the broker needs no synchronization of its own.
type broker struct {
	r *router

	// topic URI -> subscription.  Keying by topic structurally enforces
	// at most one subscription per topic per realm.
	topicSubs map[wamp.URI]*subscription

	// subscription ID -> subscription, for UNSUBSCRIBE lookup.
	subs map[wamp.ID]*subscription
}

func newBroker(r *router) *broker {
	return &broker{
		r:         r,
		topicSubs: map[wamp.URI]*subscription{},
		subs:      map[wamp.ID]*subscription{},
	}
}

// features returns the features advertised for the broker role in the
// WELCOME message.  The Basic Profile broker has none.
func (b *broker) features() wamp.Dict {
	return wamp.Dict{}
}

// subscribe subscribes the session to the given topic.
//
// A SUBSCRIBE for a topic that already has a subscription adds the session
// to the existing subscriber set and answers with the existing
// Subscription|id; re-subscribing an already-subscribed session is
// idempotent and answers with the same id.
func (b *broker) subscribe(sess *Session, msg *wamp.Subscribe) {
	if !sess.HasRole(wamp.RoleSubscriber) {
		b.r.send(sess, &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Details: wamp.Dict{},
			Error:   wamp.ErrNoSubscriberRole,
		})
		return
	}
	if !b.validTopic(msg.Topic) {
		b.r.send(sess, &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Details: wamp.Dict{},
			Error:   wamp.ErrInvalidURI,
			Arguments: wamp.List{fmt.Sprintf(
				"subscribe with invalid topic URI %v (URI strict checking %v)",
				msg.Topic, b.r.strictURI)},
		})
		return
	}

	sub, ok := b.topicSubs[msg.Topic]
	if !ok {
		// First subscriber to this topic: allocate a subscription ID from
		// the router scope, excluding the IDs currently live in it.
		sub = &subscription{
			id:          b.r.routerIDGen.Next(b.r.subIDs),
			topic:       msg.Topic,
			subscribers: map[*Session]struct{}{},
		}
		b.r.subIDs[sub.id] = struct{}{}
		b.topicSubs[msg.Topic] = sub
		b.subs[sub.id] = sub
		if b.r.debug {
			b.r.log.Println("created subscription", sub.id, "to topic",
				sub.topic)
		}
	}
	sub.subscribers[sess] = struct{}{}

	b.r.send(sess, &wamp.Subscribed{Request: msg.Request, Subscription: sub.id})
}

// unsubscribe removes the session from the identified subscription.  The
// subscription is looked up by id only; removing a session that is not in
// the subscriber set is a no-op, not an error.
func (b *broker) unsubscribe(sess *Session, msg *wamp.Unsubscribe) {
	sub, ok := b.subs[msg.Subscription]
	if !ok {
		b.r.send(sess, &wamp.Error{
			Type:    msg.MessageType(),
			Request: msg.Request,
			Details: wamp.Dict{},
			Error:   wamp.ErrNoSuchSubscription,
		})
		return
	}
	delete(sub.subscribers, sess)
	if len(sub.subscribers) == 0 {
		b.deleteSubscription(sub)
	}
	b.r.send(sess, &wamp.Unsubscribed{Request: msg.Request})
}

// publish routes a PUBLISH to the subscribers of its topic.
//
// The publisher itself never receives an EVENT for its own publication;
// publisher exclusion is unconditional in the Basic Profile.  The
// PUBLISHED acknowledgement, when requested, is sent after the fan-out is
// enqueued, and is sent whether or not any subscribers existed.
func (b *broker) publish(sess *Session, msg *wamp.Publish) {
	ack := wamp.OptionFlag(msg.Options, wamp.OptAcknowledge)
	if !sess.HasRole(wamp.RolePublisher) {
		if ack {
			b.r.send(sess, &wamp.Error{
				Type:    msg.MessageType(),
				Request: msg.Request,
				Details: wamp.Dict{},
				Error:   wamp.ErrNoPublisherRole,
			})
		}
		return
	}
	if !b.validTopic(msg.Topic) {
		if ack {
			b.r.send(sess, &wamp.Error{
				Type:    msg.MessageType(),
				Request: msg.Request,
				Details: wamp.Dict{},
				Error:   wamp.ErrInvalidURI,
				Arguments: wamp.List{fmt.Sprintf(
					"publish with invalid topic URI %v (URI strict checking %v)",
					msg.Topic, b.r.strictURI)},
			})
		}
		return
	}

	// Allocate the publication ID from the global scope and record it in
	// the live set so later draws avoid collision.
	pubID := b.r.globalIDGen.Next(b.r.pubIDs)
	b.r.pubIDs[pubID] = struct{}{}

	if sub, ok := b.topicSubs[msg.Topic]; ok {
		for subscriber := range sub.subscribers {
			if subscriber == sess {
				continue
			}
			// The payload is forwarded verbatim; the broker never
			// interprets it.
			b.r.send(subscriber, &wamp.Event{
				Subscription: sub.id,
				Publication:  pubID,
				Details:      wamp.Dict{},
				Arguments:    msg.Arguments,
				ArgumentsKw:  msg.ArgumentsKw,
			})
		}
	}

	if ack {
		b.r.send(sess, &wamp.Published{
			Request:     msg.Request,
			Publication: pubID,
		})
	}
}

// removeSession removes the session from every subscription containing
// it, deleting any subscription left with no subscribers.
func (b *broker) removeSession(sess *Session) {
	for _, sub := range b.subs {
		if _, ok := sub.subscribers[sess]; !ok {
			continue
		}
		delete(sub.subscribers, sess)
		if len(sub.subscribers) == 0 {
			b.deleteSubscription(sub)
		}
	}
}

func (b *broker) deleteSubscription(sub *subscription) {
	delete(b.topicSubs, sub.topic)
	delete(b.subs, sub.id)
	delete(b.r.subIDs, sub.id)
	if b.r.debug {
		b.r.log.Println("deleted subscription", sub.id, "to topic", sub.topic)
	}
}

// validTopic checks a client-supplied topic URI against the router's
// validation mode.  Strict mode also refuses the URI namespace reserved
// for the protocol itself.
func (b *broker) validTopic(topic wamp.URI) bool {
	if !topic.ValidURI(b.r.strictURI) {
		return false
	}
	if b.r.strictURI && topic.ReservedPrefix() {
		return false
	}
	return true
}
