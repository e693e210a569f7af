package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"golang.org/x/crypto/bcrypt"
)

const defaultLocalDBName = "rps_local.db"

// SQLiteService stores accounts and sessions in a local SQLite file.
type SQLiteService struct {
	db         *sql.DB
	sessionTTL time.Duration
	hashCost   int
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath, err := LocalDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLiteService(dbPath, sessionTTLFromEnv())
}

// OpenSQLite opens (creating if needed) a SQLite database tuned for a single writer.
// The ledger shares it when both run in local mode.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewSQLiteService(dbPath string, sessionTTL time.Duration) (*SQLiteService, error) {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := ensureSQLiteAuthSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteService{
		db:         db,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
	}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) Register(ctx context.Context, username, password string) (Account, string, error) {
	if err := validateUsername(username); err != nil {
		return Account{}, "", err
	}
	if err := validatePassword(password); err != nil {
		return Account{}, "", err
	}

	normalized := normalizeUsername(username)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return Account{}, "", err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, "", err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	id, err := s.insertAccountTx(ctx, tx, normalized, false, nowMs)
	if err != nil {
		return Account{}, "", err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO auth_identities (account_id, provider, provider_subject, password_hash, created_at_ms)
VALUES (?, 'local', ?, ?, ?)
`, id, normalized, string(hash), nowMs); err != nil {
		if isSQLiteUniqueViolation(err) {
			return Account{}, "", ErrUsernameTaken
		}
		return Account{}, "", err
	}

	token, err := s.issueSessionTx(ctx, tx, id, nowMs)
	if err != nil {
		return Account{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return Account{}, "", err
	}
	return Account{ID: id, Username: normalized}, token, nil
}

func (s *SQLiteService) Login(ctx context.Context, username, password string) (Account, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return Account{}, "", ErrInvalidCredentials
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		id   uint64
		hash string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT account_id, password_hash
FROM auth_identities
WHERE provider = 'local'
  AND provider_subject = ?
`, normalized).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, "", ErrInvalidCredentials
		}
		return Account{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, "", ErrInvalidCredentials
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, "", err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET last_login_at_ms = ? WHERE id = ?`, nowMs, id); err != nil {
		return Account{}, "", err
	}
	token, err := s.issueSessionTx(ctx, tx, id, nowMs)
	if err != nil {
		return Account{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return Account{}, "", err
	}
	return Account{ID: id, Username: normalized}, token, nil
}

func (s *SQLiteService) Guest(ctx context.Context) (Account, string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	for i := 0; i < 5; i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return Account{}, "", err
		}

		nowMs := time.Now().UTC().UnixMilli()
		name := guestName()
		id, err := s.insertAccountTx(ctx, tx, name, true, nowMs)
		if err != nil {
			_ = tx.Rollback()
			if errors.Is(err, ErrUsernameTaken) {
				continue
			}
			return Account{}, "", err
		}
		token, err := s.issueSessionTx(ctx, tx, id, nowMs)
		if err != nil {
			_ = tx.Rollback()
			return Account{}, "", err
		}
		if err := tx.Commit(); err != nil {
			return Account{}, "", err
		}
		return Account{ID: id, Username: name, Guest: true}, token, nil
	}
	return Account{}, "", fmt.Errorf("failed to allocate guest account")
}

func (s *SQLiteService) ResolveSession(ctx context.Context, token string) (Account, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Account{}, false
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	nowMs := time.Now().UTC().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, false
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE auth_sessions
SET last_seen_at_ms = ?,
    expires_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
  AND expires_at_ms > ?
`, nowMs, nowMs+s.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return Account{}, false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return Account{}, false
	}

	var acc Account
	err = tx.QueryRowContext(ctx, `
SELECT a.id, a.username, a.is_guest
FROM auth_sessions AS s
JOIN accounts AS a ON a.id = s.account_id
WHERE s.token = ?
`, token).Scan(&acc.ID, &acc.Username, &acc.Guest)
	if err != nil {
		return Account{}, false
	}
	if err := tx.Commit(); err != nil {
		return Account{}, false
	}
	return acc, true
}

func (s *SQLiteService) Logout(ctx context.Context, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, _ = s.db.ExecContext(ctx, `
UPDATE auth_sessions
SET revoked_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
`, time.Now().UTC().UnixMilli(), token)
}

func (s *SQLiteService) insertAccountTx(ctx context.Context, tx *sql.Tx, username string, guest bool, nowMs int64) (uint64, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO accounts (username, is_guest, created_at_ms, last_login_at_ms)
VALUES (?, ?, ?, ?)
`, username, guest, nowMs, nowMs)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *SQLiteService) issueSessionTx(ctx context.Context, tx *sql.Tx, accountID uint64, nowMs int64) (string, error) {
	expiresAtMs := nowMs + s.sessionTTL.Milliseconds()
	for i := 0; i < 5; i++ {
		token := mustToken()
		if _, err := tx.ExecContext(ctx, `
INSERT INTO auth_sessions (token, account_id, issued_at_ms, expires_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)
`, token, accountID, nowMs, expiresAtMs, nowMs); err != nil {
			if isSQLiteUniqueViolation(err) {
				continue
			}
			return "", err
		}
		return token, nil
	}
	return "", fmt.Errorf("failed to generate unique session token")
}

func ensureSQLiteAuthSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    is_guest INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    last_login_at_ms INTEGER
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_username_ci ON accounts(lower(username))`,
		`
CREATE TABLE IF NOT EXISTS auth_identities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL,
    provider TEXT NOT NULL,
    provider_subject TEXT NOT NULL,
    password_hash TEXT,
    created_at_ms INTEGER NOT NULL,
    FOREIGN KEY(account_id) REFERENCES accounts(id) ON DELETE CASCADE
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_auth_provider_subject ON auth_identities(provider, provider_subject)`,
		`
CREATE TABLE IF NOT EXISTS auth_sessions (
    token TEXT PRIMARY KEY,
    account_id INTEGER NOT NULL,
    issued_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL,
    revoked_at_ms INTEGER,
    last_seen_at_ms INTEGER NOT NULL,
    FOREIGN KEY(account_id) REFERENCES accounts(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_sessions_account ON auth_sessions(account_id, expires_at_ms DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LocalDatabasePathFromEnv resolves the SQLite file shared by auth and ledger.
func LocalDatabasePathFromEnv() (string, error) {
	for _, key := range []string{"AUTH_LOCAL_DATABASE_PATH", "LOCAL_DATABASE_PATH"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return filepath.Clean(v), nil
		}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rps-lite", defaultLocalDBName), nil
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
