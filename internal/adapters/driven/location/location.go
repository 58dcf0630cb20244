// Package location provides address and navigation adapters for views that
// do not run in a browser.
package location

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure URL implements the interface.
var _ driven.Location = (*URL)(nil)

// URL is an in-process address bar. Every replacement is kept so that
// callers can audit what the address went through.
type URL struct {
	mu      sync.Mutex
	current url.URL
	history []url.URL
}

// New creates a location at the given address.
func New(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing location: %w", err)
	}
	return &URL{current: *u}, nil
}

// Current returns the current address.
func (l *URL) Current() url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Replace swaps the current address without adding a navigation entry.
func (l *URL) Replace(next url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, l.current)
	l.current = next
}

// History returns the addresses that were replaced, oldest first.
func (l *URL) History() []url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]url.URL, len(l.history))
	copy(out, l.history)
	return out
}

// String returns the current address.
func (l *URL) String() string {
	u := l.Current()
	return u.String()
}
