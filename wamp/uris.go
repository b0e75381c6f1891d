package wamp

// Predefined URIs
//
// https://wamp-proto.org/static/rfc/draft-oberstet-hybi-crossbar-wamp.html#predefined-uris
const (
	// -- Interaction --

	// Peer provided an incorrect URI for any URI-based attribute of a WAMP
	// message, such as realm or topic.
	ErrInvalidURI = URI("wamp.error.invalid_uri")

	// A Broker could not perform an unsubscribe, since the given
	// subscription is not active.
	ErrNoSuchSubscription = URI("wamp.error.no_such_subscription")

	// -- Session Close --

	CloseNormal = URI("wamp.close.normal")

	// The Peer is shutting down completely - used as a GOODBYE (or ABORT)
	// reason.
	CloseSystemShutdown = URI("wamp.close.system_shutdown")
	ErrSystemShutdown   = CloseSystemShutdown

	// A Peer acknowledges ending of a session - used as a GOODBYE reply
	// reason.
	CloseGoodbyeAndOut = URI("wamp.close.goodbye_and_out")
	ErrGoodbyeAndOut   = CloseGoodbyeAndOut

	// -- Authorization --

	// A join, publish or subscribe failed, since the Peer is not authorized
	// to perform the operation.
	ErrNotAuthorized = URI("wamp.error.not_authorized")

	// Peer wanted to join a non-existing realm (and the Router did not
	// allow to auto-create the realm).
	ErrNoSuchRealm = URI("wamp.error.no_such_realm")

	// A Peer declared a role that does not exist on the Router.
	ErrNoSuchRole = URI("wamp.error.no_such_role")

	// A Peer received an invalid WAMP protocol message.
	ErrProtocolViolation = URI("wamp.error.protocol_violation")

	// -- Role checks --

	// A Peer attempted to subscribe without having declared the subscriber
	// role, or to publish without the publisher role.  These are the
	// akka-wamp ecosystem literals, kept for interoperability with akka-wamp
	// peers; embedders preferring strict spec conformance can reply with
	// ErrNotAuthorized instead.
	ErrNoSubscriberRole = URI("akka.wamp.error.no_subscriber_role")
	ErrNoPublisherRole  = URI("akka.wamp.error.no_publisher_role")
)
