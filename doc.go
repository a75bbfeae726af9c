// Package authcore is the session and credential core of an authentication
// service: it registers users, verifies passwords, issues revocable access and
// refresh token pairs, rotates them, and resolves identity from a token.
//
// A [Provider] holds one credential store and two token stores, one per token
// kind. Each store is chosen once at construction through [Builder] and stays
// fixed for the provider's lifetime; the two token kinds may use different
// backends.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Provider], [Builder], [Config],
// the error taxonomy and value types. Flow orchestration and audit dispatch
// live under internal/. Token values live in package token, token storage in
// tokenstore, user storage in credential.
//
// # Result shape
//
// Domain misses (bad password, unknown, revoked or expired token, deleted
// user) return a nil result and a nil error so a serving layer can map them to
// one "unauthorized" response. Errors are infrastructure failures; use
// [KindOf] to obtain the externally safe classification.
//
// # What this package must NOT do
//
//   - Read environment variables or files; configuration is an explicit value.
//   - Log or audit token values or passwords.
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
