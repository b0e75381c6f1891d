package router

import (
	"fmt"

	"github.com/canopyio/canopy/wamp"
)

// URI validation modes.
const (
	ValidationModeStrict = "strict"
	ValidationModeLoose  = "loose"
)

// Config configures the router with realms and router-wide policies.
type Config struct {
	// Realms are created at router boot.
	Realms []wamp.URI `json:"realms"`

	// DefaultRealm names a realm created at boot in addition to Realms.
	DefaultRealm wamp.URI `json:"default_realm"`

	// AutoCreateRealms, when true, causes a HELLO naming an unknown realm
	// to create that realm.  When false such a HELLO is answered with an
	// ABORT.  Caution, enabling this allows any client to create realms.
	AutoCreateRealms bool `json:"auto_create_realms"`

	// ValidationMode selects URI validation strictness: "strict" or
	// "loose".  Empty defaults to loose.
	ValidationMode string `json:"validation_mode"`

	// AbortOnProtocolViolation selects the response to an unexpected
	// inbound message: send an ABORT and close the transport (true) or
	// silently drop the message (false, the default).
	AbortOnProtocolViolation bool `json:"abort_on_protocol_violation"`

	// OutQueueSize is accepted in the configuration but is not read by the
	// router or by WebsocketServer.  The queue size of websocket peers is
	// set through WebsocketServer.OutQueueSize.
	OutQueueSize int `json:"out_queue_size"`

	// Debug enables per-message logging.
	Debug bool `json:"debug"`
}

// strictURI maps the configured validation mode onto the strict flag.
func (c *Config) strictURI() (bool, error) {
	switch c.ValidationMode {
	case ValidationModeStrict:
		return true, nil
	case ValidationModeLoose, "":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized validation mode %q", c.ValidationMode)
}

// realmURIs returns the set of realms to create at boot, with the default
// realm included and duplicates removed.
func (c *Config) realmURIs() []wamp.URI {
	uris := make([]wamp.URI, 0, len(c.Realms)+1)
	seen := make(map[wamp.URI]struct{}, len(c.Realms)+1)
	if c.DefaultRealm != "" {
		uris = append(uris, c.DefaultRealm)
		seen[c.DefaultRealm] = struct{}{}
	}
	for _, uri := range c.Realms {
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		uris = append(uris, uri)
	}
	return uris
}
