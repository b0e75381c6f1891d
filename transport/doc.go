/*
Package transport provides the peer implementations that connect endpoints
to the router: a websocket peer for network clients and a linked in-process
peer pair for embedded clients and tests.
*/
package transport
