// Package flows contains the orchestration behind every Provider operation.
//
// Each Run* function takes a typed dependency struct and returns a result or
// an error without holding state between calls. The root Provider builds the
// Deps once and owns every store; flows only coordinate them.
//
// # Result shape
//
// Domain misses (bad password, unknown or expired token, deleted user) are
// reported as a nil result with a nil error. Errors are infrastructure
// failures only.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Record metrics or audit events; the Provider does that from results.
package flows
