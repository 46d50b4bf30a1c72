// Package store persists the client's token material and the last-known-good
// authority sets.
//
// Three backends are provided. Memory is the default and scopes tokens to the
// process lifetime, the recommended low-exposure choice. File keeps tokens
// across restarts for single-user tooling. Redis shares one session between
// headless workers pointed at the same instance.
//
// Every backend uses the same key names, so a session written by one backend
// can be read back by another aimed at the same medium. A backend error never
// crashes the caller: the session layer degrades to treating the user as
// unauthenticated.
package store
