// Package server exposes the connection service over HTTP.
//
// Every route except /healthz requires a bearer session credential. The
// verified identity, never a client-supplied one, selects the connection
// record. Responses are JSON envelopes carrying a success flag.
package server
