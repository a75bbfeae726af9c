// Package token defines the opaque random values issued as access and refresh tokens.
//
// A [Value] is an immutable byte string drawn from a CSPRNG. [Auth] and [Refresh]
// wrap the same representation as distinct types so one can never be passed where
// the other is required. Tokens cross process boundaries as unpadded URL-safe
// base64 text.
//
// # What this package must NOT do
//
//   - Persist tokens or attach ownership. See package tokenstore.
//   - Log token bytes.
package token
