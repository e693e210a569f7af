package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MemoryService keeps accounts and sessions in process memory. Everything is lost on
// restart; use it for local play and tests.
type MemoryService struct {
	mu sync.Mutex

	nextAccountID uint64
	sessionTTL    time.Duration
	hashCost      int
	now           func() time.Time

	sessions      map[string]sessionRecord
	accountsByID  map[uint64]accountRecord
	accountsByKey map[string]uint64 // normalized username -> account
}

type sessionRecord struct {
	AccountID uint64
	ExpiresAt time.Time
}

type accountRecord struct {
	Account
	PasswordHash  []byte
	LastLoginTime time.Time
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		nextAccountID: 100000,
		sessionTTL:    defaultSessionTTL,
		hashCost:      bcrypt.DefaultCost,
		now:           time.Now,
		sessions:      make(map[string]sessionRecord),
		accountsByID:  make(map[uint64]accountRecord),
		accountsByKey: make(map[string]uint64),
	}
}

func (m *MemoryService) Close() error { return nil }

func (m *MemoryService) issueSessionLocked(accountID uint64, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{
		AccountID: accountID,
		ExpiresAt: now.Add(m.sessionTTL),
	}
	return token
}

func (m *MemoryService) Register(_ context.Context, username, password string) (Account, string, error) {
	if err := validateUsername(username); err != nil {
		return Account{}, "", err
	}
	if err := validatePassword(password); err != nil {
		return Account{}, "", err
	}

	normalized := normalizeUsername(username)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.hashCost)
	if err != nil {
		return Account{}, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accountsByKey[normalized]; exists {
		return Account{}, "", ErrUsernameTaken
	}

	m.nextAccountID++
	now := m.now()
	rec := accountRecord{
		Account:       Account{ID: m.nextAccountID, Username: normalized},
		PasswordHash:  hash,
		LastLoginTime: now,
	}
	m.accountsByID[rec.ID] = rec
	m.accountsByKey[normalized] = rec.ID
	return rec.Account, m.issueSessionLocked(rec.ID, now), nil
}

func (m *MemoryService) Login(_ context.Context, username, password string) (Account, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return Account{}, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.accountsByKey[normalized]
	if !exists {
		return Account{}, "", ErrInvalidCredentials
	}
	rec := m.accountsByID[id]
	if rec.Guest || len(rec.PasswordHash) == 0 {
		return Account{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)) != nil {
		return Account{}, "", ErrInvalidCredentials
	}

	now := m.now()
	rec.LastLoginTime = now
	m.accountsByID[id] = rec
	return rec.Account, m.issueSessionLocked(id, now), nil
}

func (m *MemoryService) Guest(_ context.Context) (Account, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAccountID++
	rec := accountRecord{Account: Account{ID: m.nextAccountID, Username: guestName(), Guest: true}}
	m.accountsByID[rec.ID] = rec
	return rec.Account, m.issueSessionLocked(rec.ID, m.now()), nil
}

// ResolveSession validates a token and slides its expiry forward.
func (m *MemoryService) ResolveSession(_ context.Context, token string) (Account, bool) {
	if token == "" {
		return Account{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.sessions[token]
	if !exists {
		return Account{}, false
	}
	now := m.now()
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return Account{}, false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec
	return m.accountsByID[rec.AccountID].Account, true
}

func (m *MemoryService) Logout(_ context.Context, token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}
