// Package wire owns the message framing and argument codec.
//
// Ownership boundary:
// - 8-byte message header (object id, opcode, size)
// - per-argument encoding driven by a schema signature
// - ordering of out-of-band file descriptors
//
// The wire format carries no type tags: decoding always needs the exact
// signature from the catalog.
package wire
