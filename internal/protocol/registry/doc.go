// Package registry owns protocol object ids for one connection.
//
// Ownership boundary:
// - client id allocation and reuse after delete_id
// - binding server-allocated ids from events
// - the Unbound -> Active -> PendingDestroy -> Freed lifecycle
// - since-version gating of requests and events
//
// A Registry is not synchronized; its connection is the only owner.
package registry
