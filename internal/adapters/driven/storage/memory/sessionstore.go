package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure SessionStore implements the interfaces.
var (
	_ driven.SessionStore   = (*SessionStore)(nil)
	_ driven.SessionWatcher = (*SessionStore)(nil)
)

// SessionStore holds a session credential in memory.
type SessionStore struct {
	mu       sync.Mutex
	cred     domain.SessionCredential
	watchers []chan driven.SessionEvent
}

// NewSessionStore creates a store seeded with cred, which may be empty.
func NewSessionStore(cred domain.SessionCredential) *SessionStore {
	return &SessionStore{cred: cred}
}

// Load returns the stored credential.
func (s *SessionStore) Load(_ context.Context) (domain.SessionCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, nil
}

// Save replaces the stored credential.
func (s *SessionStore) Save(_ context.Context, cred domain.SessionCredential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	s.publish(driven.SessionEvent{Present: !cred.IsZero()})
	return nil
}

// Clear removes the stored credential.
func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.cred = ""
	s.mu.Unlock()
	s.publish(driven.SessionEvent{Present: false})
	return nil
}

// Watch delivers an event after every Save or Clear until ctx is done.
func (s *SessionStore) Watch(ctx context.Context) (<-chan driven.SessionEvent, error) {
	ch := make(chan driven.SessionEvent, 4)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (s *SessionStore) publish(ev driven.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		select {
		case w <- ev:
		default:
		}
	}
}
