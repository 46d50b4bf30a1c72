// Package transport is the HTTP interceptor pipeline beneath every
// authenticated call.
//
// The request stage attaches the current bearer token and an X-Request-ID.
// The response stage implements the 401 refresh protocol: the first 401 on a
// request triggers a single-flight refresh exchange and one retry with the
// rotated token; a 401 on the retry is unrecoverable and invalidates the
// session. A 403 is an authorization failure, not an authentication failure,
// and always passes through untouched.
//
// Single-flight matters because N concurrent requests observing the same
// expiry would otherwise race N refresh calls, each rotation invalidating
// the others' refresh tokens. One token generation per expiry event is the
// invariant; late arrivals reuse the generation that is already current.
package transport
