// Package server exposes live sessions over WebSocket.
//
// One goroutine pair per connection: a read pump decoding client messages
// into coordinator events, and a write pump draining the subscription
// channel. Malformed input gets an error frame back; it never takes the
// connection down.
package server
