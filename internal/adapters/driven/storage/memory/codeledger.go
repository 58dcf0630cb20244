package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure CodeLedger implements the interface.
var _ driven.CodeLedger = (*CodeLedger)(nil)

// CodeLedger is an in-memory implementation of driven.CodeLedger.
type CodeLedger struct {
	mu      sync.Mutex
	entries map[string]domain.ExchangedCode
}

// NewCodeLedger creates a new in-memory code ledger.
func NewCodeLedger() *CodeLedger {
	return &CodeLedger{
		entries: make(map[string]domain.ExchangedCode),
	}
}

// Claim records a code hash, failing if it was claimed before.
func (l *CodeLedger) Claim(_ context.Context, entry domain.ExchangedCode) error {
	if entry.CodeHash == "" {
		return domain.ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[entry.CodeHash]; ok {
		return domain.ErrCodeAlreadyExchanged
	}
	l.entries[entry.CodeHash] = entry
	return nil
}

// Prune drops entries created before the cutoff.
func (l *CodeLedger) Prune(_ context.Context, before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for hash, entry := range l.entries {
		if entry.CreatedAt.Before(before) {
			delete(l.entries, hash)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of claimed codes.
func (l *CodeLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
