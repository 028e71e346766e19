// Package control implements both ends of the loom control channel.
//
// The Server runs inside (or in front of) an instrumented process and
// serves one operator session at a time over TCP. Each request frame is
// decoded into a protocol.Command, handed to a Handler, and answered with
// exactly one reply frame, so client and server never fall out of step.
// A framing error or disconnect ends the session and the server goes back
// to accepting.
//
// The Client and Interactive types are the operator side: Client performs
// single request/reply exchanges, and Interactive wraps it in a
// line-oriented loop for a terminal or a script.
package control
