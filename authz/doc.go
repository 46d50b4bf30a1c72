// Package authz resolves the session's roles and permissions and answers
// capability-check queries for the route guard.
//
// The authorities endpoint has shipped several response shapes; decoding
// tries a short ordered list of extraction strategies and takes the first
// that yields results. That tolerance is a compatibility shim confined to
// one adapter function, not a contract.
//
// A 403 on the fetch means "no authorities granted" and degrades to empty
// sets; any other failure falls back to the last-known-good cached copy so
// read-only checks keep working until the next successful fetch.
package authz
