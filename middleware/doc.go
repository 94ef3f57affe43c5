// Package middleware adapts HTTP semantics to engine calls: a bearer-token
// guard, request-ID propagation, and the refresh cookie helpers. It makes no
// authentication decisions itself; everything is delegated to the engine.
package middleware
