// Package rest is the thin typed client for the backend auth contract.
//
// It only shapes requests and decodes responses; bearer attachment and the
// 401 refresh protocol live in the transport package. The session wires two
// instances: one on a bare HTTP client for the auth endpoints themselves
// (login, refresh, logout must never recurse into the refresh protocol) and
// one on the intercepted client for everything else.
package rest
