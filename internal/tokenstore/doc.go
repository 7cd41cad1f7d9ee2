// Package tokenstore persists an access/refresh token pair with expiry-aware reads.
//
// Four values are kept under a namespace prefix in any storage.Storage:
// the access token, its expiry, the refresh token and its expiry. Expiries are
// stored as Unix milliseconds. A token whose expiry is not strictly after the
// current time reads as absent, although its raw value stays in storage until
// overwritten or removed by Logout.
package tokenstore
