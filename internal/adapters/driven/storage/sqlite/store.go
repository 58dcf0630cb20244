package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// dbFileName is the database file inside the data directory.
const dbFileName = "connections.db"

// Store is a unified SQLite-based storage that provides access to
// the connection and code ledger interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-connect/data/connections.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-connect", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	// WAL mode lets the status reads proceed during an exchange write.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ConnectionStore returns a ConnectionStore interface backed by this store.
func (s *Store) ConnectionStore() driven.ConnectionStore {
	return &connectionStore{store: s}
}

// CodeLedger returns a CodeLedger interface backed by this store.
func (s *Store) CodeLedger() driven.CodeLedger {
	return &codeLedger{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Connection Store ====================

// connectionStore implements driven.ConnectionStore.
type connectionStore struct {
	store *Store
}

var _ driven.ConnectionStore = (*connectionStore)(nil)

// Save stores the record, replacing any record for the same identity.
func (s *connectionStore) Save(ctx context.Context, record domain.ConnectionRecord) error {
	record.Identity = domain.NormalizeIdentity(record.Identity)
	if record.Identity == "" {
		return domain.ErrInvalidInput
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	now := s.store.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	// The identity owns the row: a reconnect keeps the original id and
	// creation time.
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO connections (id, identity, workspace_reference, workspace_name, bot_id,
			connected, access_token, token_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			workspace_reference = excluded.workspace_reference,
			workspace_name = excluded.workspace_name,
			bot_id = excluded.bot_id,
			connected = excluded.connected,
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			updated_at = excluded.updated_at
	`, record.ID, record.Identity, record.WorkspaceReference,
		nullString(record.WorkspaceName), nullString(record.BotID),
		record.Connected, nullString(record.AccessToken), nullString(record.TokenType),
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}
	return nil
}

// GetByIdentity retrieves the record for an identity.
func (s *connectionStore) GetByIdentity(ctx context.Context, identity string) (*domain.ConnectionRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, identity, workspace_reference, workspace_name, bot_id,
			connected, access_token, token_type, created_at, updated_at
		FROM connections WHERE identity = ?
	`, domain.NormalizeIdentity(identity))
	return scanConnection(row)
}

// MarkDisconnected clears the connected flag and the token.
func (s *connectionStore) MarkDisconnected(ctx context.Context, identity string) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE connections
		SET connected = 0, access_token = NULL, updated_at = ?
		WHERE identity = ?
	`, s.store.now().UTC(), domain.NormalizeIdentity(identity))
	if err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}
	return nil
}

// List returns all records ordered by identity.
func (s *connectionStore) List(ctx context.Context) ([]domain.ConnectionRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, identity, workspace_reference, workspace_name, bot_id,
			connected, access_token, token_type, created_at, updated_at
		FROM connections ORDER BY identity
	`)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var records []domain.ConnectionRecord
	for rows.Next() {
		record, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*domain.ConnectionRecord, error) {
	var record domain.ConnectionRecord
	var workspaceName, botID, accessToken, tokenType sql.NullString
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&record.ID, &record.Identity, &record.WorkspaceReference,
		&workspaceName, &botID, &record.Connected, &accessToken, &tokenType,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning connection: %w", err)
	}

	record.WorkspaceName = workspaceName.String
	record.BotID = botID.String
	record.AccessToken = accessToken.String
	record.TokenType = tokenType.String
	if createdAt.Valid {
		record.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time
	}
	return &record, nil
}

// ==================== Code Ledger ====================

// codeLedger implements driven.CodeLedger.
type codeLedger struct {
	store *Store
}

var _ driven.CodeLedger = (*codeLedger)(nil)

// Claim inserts the code hash. The primary key makes concurrent claims of
// the same code race safely: exactly one insert affects a row.
func (l *codeLedger) Claim(ctx context.Context, entry domain.ExchangedCode) error {
	if entry.CodeHash == "" {
		return domain.ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.store.now().UTC()
	}

	result, err := l.store.db.ExecContext(ctx, `
		INSERT INTO exchanged_codes (code_hash, identity, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(code_hash) DO NOTHING
	`, entry.CodeHash, entry.Identity, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("claiming code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming code: %w", err)
	}
	if affected == 0 {
		return domain.ErrCodeAlreadyExchanged
	}
	return nil
}

// Prune deletes ledger rows created before the cutoff.
func (l *codeLedger) Prune(ctx context.Context, before time.Time) (int, error) {
	result, err := l.store.db.ExecContext(ctx,
		`DELETE FROM exchanged_codes WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning codes: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning codes: %w", err)
	}
	return int(affected), nil
}

// nullString converts an empty string to a NULL value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
