// Package services holds the connection logic behind the driving ports:
// the server-side exchange, status and disconnect, the local session
// resolver, and the controller that drives a consuming view.
//
// Services depend only on domain and the port interfaces.
package services
