package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure FileStore implements the interfaces.
var (
	_ driven.SessionStore   = (*FileStore)(nil)
	_ driven.SessionWatcher = (*FileStore)(nil)
)

// sessionFileName is the credential file inside the config directory.
const sessionFileName = "session.toml"

// settleDelay is how long the watcher waits for writes to stop before it
// reports a change.
const settleDelay = 100 * time.Millisecond

// sessionFile is the on-disk layout.
type sessionFile struct {
	Token   string    `toml:"token"`
	SavedAt time.Time `toml:"saved_at"`
}

// FileStore keeps the session credential in a TOML file.
type FileStore struct {
	mu       sync.Mutex
	filePath string
}

// NewFileStore creates a file-backed session store.
// If configDir is empty, defaults to ~/.sercha-connect/session.toml.
func NewFileStore(configDir string) (*FileStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".sercha-connect")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}
	return &FileStore{filePath: filepath.Join(configDir, sessionFileName)}, nil
}

// Path returns the session file path.
func (s *FileStore) Path() string {
	return s.filePath
}

// Load reads the credential. A missing file is an empty credential.
func (s *FileStore) Load(_ context.Context) (domain.SessionCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("session file missing: %s", s.filePath)
			return "", nil
		}
		return "", err
	}

	var f sessionFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	return domain.SessionCredential(f.Token), nil
}

// Save writes the credential with owner-only permissions.
func (s *FileStore) Save(_ context.Context, cred domain.SessionCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(sessionFile{Token: cred.String(), SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Clear removes the session file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch reports changes to the session file until ctx is done. The
// directory is watched so that the file may be created or removed.
func (s *FileStore) Watch(ctx context.Context) (<-chan driven.SessionEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(s.filePath), err)
	}

	events := make(chan driven.SessionEvent, 1)
	go s.watchLoop(ctx, watcher, events)
	return events, nil
}

func (s *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, events chan<- driven.SessionEvent) {
	defer close(events)
	defer watcher.Close()

	// Files are often written in chunks; report once writes settle.
	timer := time.NewTimer(settleDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.filePath) {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(settleDelay)
		case <-timer.C:
			cred, err := s.Load(ctx)
			ev := driven.SessionEvent{Present: !cred.IsZero(), Err: err}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				timer.Reset(settleDelay)
				continue
			}
			logger.Warn("watching session file: %v", err)
		}
	}
}
