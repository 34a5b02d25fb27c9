// Package message defines the closed vocabulary of client messages and the
// JSON envelope codec.
//
// Each message variant is a struct carrying exactly the fields needed for
// its one transition; a message never carries a full document. The union is
// closed: the Message interface has an unexported marker method, and the
// codec rejects unknown type tags at the boundary, so malformed input never
// reaches the reducer.
//
// Dispatch over the union is an exhaustive type switch in internal/engine.
// The Registry function enumerates every variant so tests can verify the
// switch handles all of them; adding a variant here without handling it
// there fails the engine's exhaustiveness test, not silently at runtime.
package message
