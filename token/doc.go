// Package token implements the signed-token codec: issuing and verifying
// short-lived access tokens and long-lived refresh tokens as HS256 JWTs with
// independent secrets, and computing the one-way fingerprint under which a
// refresh token is tracked server-side.
package token
