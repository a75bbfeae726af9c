// Package middleware adapts HTTP requests to the authcore Provider.
//
//   - [Bearer] decodes the Authorization header into the request context.
//     Absent or malformed headers leave the request anonymous.
//   - [RequireUser] resolves the token through Provider.Whoami and rejects
//     anonymous or revoked requests.
//
// # What this package must NOT do
//
//   - Touch token or credential stores directly (the Provider does I/O).
//   - Expose error text; responses carry only the error kind.
package middleware
