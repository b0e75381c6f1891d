package wamp

import "fmt"

// Validate runs the structural checks that every message must pass before
// it enters the router: ID fields within [1, 2^53-1], HELLO roles a
// non-empty mapping of known client roles to feature dicts, and ERROR
// request types recognized.  URI mode conformance is a router-wide setting
// and is checked by the router, not here.
//
// The decoder calls Validate on every inbound message; a failure is a
// protocol error and the transport is closed.  Constructing an invalid
// message locally is a programmer error.
func Validate(msg Message) error {
	switch m := msg.(type) {
	case *Hello:
		if m.Realm == "" {
			return fmt.Errorf("%s: missing realm", HELLO)
		}
		return validateHelloRoles(m.Details)
	case *Welcome:
		return validID(WELCOME, "session", m.ID)
	case *Abort, *Goodbye:
		return nil
	case *Error:
		if !m.Type.Recognized() {
			return fmt.Errorf("%s: unrecognized request type %d", ERROR, m.Type)
		}
		return validID(ERROR, "request", m.Request)
	case *Publish:
		return validID(PUBLISH, "request", m.Request)
	case *Published:
		return firstErr(
			validID(PUBLISHED, "request", m.Request),
			validID(PUBLISHED, "publication", m.Publication))
	case *Subscribe:
		return validID(SUBSCRIBE, "request", m.Request)
	case *Subscribed:
		return firstErr(
			validID(SUBSCRIBED, "request", m.Request),
			validID(SUBSCRIBED, "subscription", m.Subscription))
	case *Unsubscribe:
		return firstErr(
			validID(UNSUBSCRIBE, "request", m.Request),
			validID(UNSUBSCRIBE, "subscription", m.Subscription))
	case *Unsubscribed:
		return validID(UNSUBSCRIBED, "request", m.Request)
	case *Event:
		return firstErr(
			validID(EVENT, "subscription", m.Subscription),
			validID(EVENT, "publication", m.Publication))
	case *Call:
		return validID(CALL, "request", m.Request)
	case *Result:
		return validID(RESULT, "request", m.Request)
	case *Register:
		return validID(REGISTER, "request", m.Request)
	case *Registered:
		return firstErr(
			validID(REGISTERED, "request", m.Request),
			validID(REGISTERED, "registration", m.Registration))
	case *Unregister:
		return firstErr(
			validID(UNREGISTER, "request", m.Request),
			validID(UNREGISTER, "registration", m.Registration))
	case *Unregistered:
		return validID(UNREGISTERED, "request", m.Request)
	case *Invocation:
		return firstErr(
			validID(INVOCATION, "request", m.Request),
			validID(INVOCATION, "registration", m.Registration))
	case *Yield:
		return validID(YIELD, "request", m.Request)
	}
	return fmt.Errorf("unrecognized message type %d", msg.MessageType())
}

// validateHelloRoles checks that HELLO.Details.roles is a non-empty
// mapping whose keys are client roles and whose values are (possibly
// empty) dictionaries of role features.
func validateHelloRoles(details Dict) error {
	iface, ok := details[OptRoles]
	if !ok {
		return fmt.Errorf("%s: missing roles", HELLO)
	}
	roles := NormalizeDict(iface)
	if roles == nil {
		return fmt.Errorf("%s: roles is not a dict", HELLO)
	}
	if len(roles) == 0 {
		return fmt.Errorf("%s: empty roles", HELLO)
	}
	for role, features := range roles {
		if !ClientRole(role) {
			return fmt.Errorf("%s: unknown role %q", HELLO, role)
		}
		if features == nil {
			continue
		}
		if d := NormalizeDict(features); d == nil {
			return fmt.Errorf("%s: features for role %q is not a dict",
				HELLO, role)
		}
	}
	return nil
}

func validID(mt MessageType, field string, id ID) error {
	if !id.Valid() {
		return fmt.Errorf("%s: %s ID %d out of range", mt, field, id)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
