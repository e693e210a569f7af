// Package ticket signs match results so the leaderboard only accepts scores the
// server actually observed.
package ticket

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	log "github.com/sirupsen/logrus"
)

const (
	issuerName = "rps-lite"
	defaultTTL = 24 * time.Hour
)

var ErrInvalidTicket = errors.New("invalid result ticket")

// Claims is the match result a ticket vouches for.
type Claims struct {
	UserID        uint64
	Username      string
	MatchID       string
	Persona       string
	Tier          string
	PlayerScore   int
	OpponentScore int
	Rounds        int
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("ticket secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// NewIssuerFromEnv reads TICKET_SECRET. Without one a random secret is generated,
// so tickets do not survive a restart.
func NewIssuerFromEnv() (*Issuer, error) {
	secret := strings.TrimSpace(os.Getenv("TICKET_SECRET"))
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(buf)
		log.Warn("[Ticket] TICKET_SECRET not set, using an ephemeral secret")
	}
	ttl := defaultTTL
	if raw := strings.TrimSpace(os.Getenv("TICKET_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			ttl = d
		}
	}
	return NewIssuer(secret, ttl)
}

func (i *Issuer) Issue(c Claims) (string, error) {
	if c.UserID == 0 || c.MatchID == "" {
		return "", fmt.Errorf("ticket needs a user and a match")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"iss":  issuerName,
		"sub":  strconv.FormatUint(c.UserID, 10),
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
		"usr":  c.Username,
		"mid":  c.MatchID,
		"prs":  c.Persona,
		"tier": c.Tier,
		"ps":   c.PlayerScore,
		"os":   c.OpponentScore,
		"rnd":  c.Rounds,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Verify(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidTicket
	}
	if iss, _ := mc["iss"].(string); iss != issuerName {
		return Claims{}, fmt.Errorf("%w: issuer %q", ErrInvalidTicket, iss)
	}

	sub, _ := mc["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject %q", ErrInvalidTicket, sub)
	}
	c := Claims{
		UserID:        userID,
		Username:      stringClaim(mc, "usr"),
		MatchID:       stringClaim(mc, "mid"),
		Persona:       stringClaim(mc, "prs"),
		Tier:          stringClaim(mc, "tier"),
		PlayerScore:   intClaim(mc, "ps"),
		OpponentScore: intClaim(mc, "os"),
		Rounds:        intClaim(mc, "rnd"),
	}
	if c.MatchID == "" {
		return Claims{}, fmt.Errorf("%w: missing match", ErrInvalidTicket)
	}
	return c, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return s
}

// JSON numbers decode as float64.
func intClaim(mc jwt.MapClaims, key string) int {
	f, _ := mc[key].(float64)
	return int(f)
}
