// Package domain defines the core business entities for sercha-connect.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SessionCredential: The host application's bearer token
//   - ConnectionRecord: The persisted link between an identity and a workspace
//   - Connection: The view's copy of that link, tagged with its freshness
//   - ViewState: Everything one controller activation publishes to its view
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
