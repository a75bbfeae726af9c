// Package tokenstore persists token records: owner id, named byte tags and an
// optional expiry, keyed by token value.
//
// # Backends
//
//   - [Memory]: lock-guarded maps, linear tag scan. Reference and tests.
//   - [Redis]: one hash per token plus per-tag reverse index sets.
//   - [Badger]: embedded LSM store with prefix-indexed tags.
//
// Every backend implements reverse lookup ([Store.GetByTag]), so callers never
// branch on backend capability.
//
// # Expiry
//
// A ttl of [NoExpiry] keeps the record until deleted. A negative ttl stores an
// already-expired record. Expiry is absolute from insertion; reads never extend it.
// A read that finds an expired record deletes it and reports [ErrTokenExpired].
// Backends may also evict expired records on their own, after which reads
// report [ErrTokenNotFound]; use [IsMiss] to treat both the same way.
package tokenstore
