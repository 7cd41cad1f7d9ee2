// Package gateway exposes a graphql.Client as a local HTTP endpoint.
//
// Requests arrive without credentials and leave with the session's
// Authorization header, refreshed as needed. Bind it to loopback only:
// anyone who can reach the gateway acts as the logged-in user.
package gateway
