// Package session holds the session credential adapters.
//
// The credential is an HS256 JWT. The server verifies its signature with the
// shared secret; clients only decode the identity claims and leave
// verification to the server.
package session
