package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// ConnectionStore persists connection records keyed by identity.
// Implementations must treat identities as already normalised.
type ConnectionStore interface {
	// Save stores a record. Creates if new, overwrites the record for the
	// same identity if one exists.
	Save(ctx context.Context, record domain.ConnectionRecord) error

	// GetByIdentity retrieves the record for an identity.
	// Returns domain.ErrNotFound if the identity never connected.
	GetByIdentity(ctx context.Context, identity string) (*domain.ConnectionRecord, error)

	// MarkDisconnected clears the connected flag and the stored token.
	// Succeeds when no record exists.
	MarkDisconnected(ctx context.Context, identity string) error

	// List returns all records, connected or not.
	List(ctx context.Context) ([]domain.ConnectionRecord, error)
}

// CodeLedger remembers which authorization codes have been presented to the
// provider. Claims are atomic and single-use.
type CodeLedger interface {
	// Claim records the code. Returns domain.ErrCodeAlreadyExchanged if the
	// code hash was claimed before.
	Claim(ctx context.Context, entry domain.ExchangedCode) error

	// Prune forgets codes claimed before the cutoff and returns how many.
	Prune(ctx context.Context, before time.Time) (int, error)
}
