// Package token decodes the identity claims carried by an access token.
//
// Decoding is deliberately unverified: the client never holds signing keys,
// and the backend is the sole authority on token validity. The decoded
// claims are used only to project the current user and to read the expiry
// for the silent-refresh decision.
package token
