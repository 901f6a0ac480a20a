// Package types holds the wire-level shapes shared across the allocator's
// components: container and executor identifiers, the resource manager's
// container/status shapes, exit classification, and the restart record.
//
// Nothing in this package owns behavior; it exists so that pkg/allocator,
// pkg/rmclient, pkg/placement, pkg/blacklist and pkg/launcher can all speak
// the same vocabulary without importing each other.
package types
