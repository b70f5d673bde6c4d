// Package preflight provides readiness checks for the filesystem paths and
// external binaries the bootstrap depends on.
//
// These checks run in two contexts:
//   - "ignite run" calls RunAll before initializing and refuses to start when
//     the data directory or bundle is unusable.
//   - "ignite status" displays every result next to component health.
//
// The runtime environment manager reuses CheckDirectoryReadable for its own
// verification step.
package preflight
