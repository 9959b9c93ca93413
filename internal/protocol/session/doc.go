// Package session owns one client connection to a display server.
//
// Ownership boundary:
// - socket bootstrap from an inherited fd or a named endpoint
// - outbound request encoding and ordered flushing with descriptors
// - inbound framing, decoding and display event interception
// - event dispatch and roundtrips
//
// A Conn is driven by one goroutine at a time. Fd exposes the socket so an
// external poll loop can wait instead of calling Wait.
package session
