package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	tokenBytes        = 32
	opTimeout         = 5 * time.Second
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Account is the identity a session token resolves to.
type Account struct {
	ID       uint64 `json:"user_id"`
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
}

// Service is the account/session contract consumed by the gateway and HTTP handlers.
type Service interface {
	Register(ctx context.Context, username, password string) (Account, string, error)
	Login(ctx context.Context, username, password string) (Account, string, error)
	// Guest creates an anonymous account so a player can start without registering.
	Guest(ctx context.Context) (Account, string, error)
	ResolveSession(ctx context.Context, token string) (Account, bool)
	Logout(ctx context.Context, token string)
	Close() error
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

// bcrypt ignores input past 72 bytes.
func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func guestName() string {
	return "guest_" + strings.ToLower(mustToken()[:10])
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opTimeout)
}
