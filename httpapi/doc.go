// Package httpapi is the HTTP/JSON serving layer over an authcore Provider.
//
// Routes:
//
//	POST /auth/register  {username, password}   201 {id}, 409 on duplicate
//	POST /auth/login     {username, password}   200 token pair, 401
//	POST /auth/refresh   {refresh_token}        200 token pair, 401
//	POST /auth/logout    Bearer                 204
//	GET  /auth/whoami    Bearer                 200 {id, username}, 401
//	GET  /healthz
//	GET  /metrics        when Options.Metrics is set
//
// Failures carry only {"error": <kind>}; error text never leaves the process.
package httpapi
