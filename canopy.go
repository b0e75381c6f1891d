/*
Package canopy provides a WAMP v2 Basic-Profile router implementing the
broker role: peers attach to named realms and exchange publish/subscribe
events through coalesced topic subscriptions.

This package re-exports the router API so that embedding applications only
need a single import.
*/
package canopy

import (
	"github.com/canopyio/canopy/router"
	"github.com/canopyio/canopy/stdlog"
)

type Config = router.Config
type Router = router.Router
type Realm = router.Realm

func NewRouter(config *Config, logger stdlog.StdLog) (Router, error) {
	return router.NewRouter(config, logger)
}

type WebsocketServer = router.WebsocketServer

func NewWebsocketServer(r Router) *WebsocketServer {
	return router.NewWebsocketServer(r)
}
