// Package session persists one record per issued refresh token, keyed by the
// token's one-way fingerprint. The store never sees a raw refresh token.
//
// Two backends implement the same Store contract: a Redis store (records as
// hashes with storage-native TTL expiry and Lua compare-and-set revocation)
// and a Postgres store (conditional UPDATE revocation and a background sweep
// of expired rows). Record expiry cleanup is advisory garbage collection in
// both backends, never a correctness dependency.
package session
