// Package authclient manages the client side of a bearer-token session:
// token lifecycle, automatic refresh-on-401 with single-flight coordination,
// and role/permission resolution for route gating.
//
// The package never issues tokens. It consumes an access/refresh pair minted
// by the backend, persists it through a pluggable store, and keeps the
// in-memory session and the persisted copy consistent across every
// transition.
//
// # Architecture boundaries
//
// authclient is the public surface. It exposes [Session], [Builder],
// [Config], and value types. Token decoding, persistence, the interceptor
// pipeline, authority resolution, and route gating live in the token, store,
// transport, authz, and guard subpackages.
//
// # What this package must NOT do
//
//   - Verify token signatures or hold signing keys; validity is the
//     backend's verdict, delivered as status codes.
//   - Trigger a refresh on 403: authorization denials never rotate tokens.
//   - Let the in-memory session run ahead of the persisted copy.
//
// Session methods are safe to call from multiple goroutines after
// construction through [Builder.Build].
package authclient
