// Package coordinator implements the per-session single-writer authority.
//
// Each session runs one event loop goroutine. The loop dequeues client
// messages in FIFO order, applies the pure reducer authoritatively, assigns
// a strictly increasing server sequence number from a logical clock, appends
// accepted mutations to the durable log, and fans the result out to every
// subscribed connection. This total order is what sync health tracking and
// snapshot reconciliation on the client rely on.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Subscribe()/unsubscribe: safe from any goroutine
//
// Sessions are independent; the hub may run any number of them in parallel
// without coordination.
package coordinator
