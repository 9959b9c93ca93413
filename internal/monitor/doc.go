// Package monitor keeps a live view of a display's advertised globals.
//
// Ownership boundary:
// - connect and reconnect policy (the engine itself never retries)
// - wl_registry global/global_remove tracking
// - periodic sync roundtrips as a liveness check
// - HTTP read surface for status, globals and the compiled catalog
package monitor
