// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Server-side Interfaces
//
//   - ConnectionStore: Connection record persistence (sqlite, memory)
//   - CodeLedger: Replay protection for authorization codes
//   - TokenExchanger: The OAuth provider's token endpoint
//   - WorkspaceLookup: Optional provider API query of workspace details
//   - SessionVerifier: Verifies session credentials presented to the server
//
// # Client-side Interfaces
//
//   - SessionStore: Where the local session credential lives
//   - SessionDecoder: Reads the identity claim without a network call
//   - Location: The view's address, carrying the one-time code
//   - Navigator: Performs the redirect to the login entry point
//   - ExchangeClient, StatusClient, DisconnectClient, IdentityClient:
//     Callers of the server's HTTP contract
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
