// Package authclient implements the HTTP client for the trading assistant's
// auth service: token issuance (login, register), profile lookup, and
// best-effort server-side token revocation.
//
// The client is stateless. It never stores the bearer token; callers pass it
// per request, which keeps the session manager the single source of truth for
// credential state.
//
// Every request runs under a configurable timeout (default 15s), and non-2xx
// responses surface as *APIError carrying the server's error message
// verbatim. 401 responses additionally match authclient.ErrUnauthorized via
// errors.Is.
package authclient
