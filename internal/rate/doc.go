// Package rate implements the Redis fixed-window counters guarding the
// credential and rotation endpoints.
//
// # Window semantics
//
// INCR plus conditional EXPIRE on the first hit in a window. Key prefixes:
//   - le: — login failures per email
//   - li: — login failures per IP
//   - rf: — rotation attempts per fingerprint
//
// Login counters track failures and are cleared on success; rotation
// counters track every attempt, successful or not, since a burst of valid
// rotations for one fingerprint is itself a replay signal.
package rate
