package lobby

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"rps-lite/apps/server/internal/codec"
	"rps-lite/apps/server/internal/ledger"
	"rps-lite/apps/server/internal/match"
	"rps-lite/game"
	"rps-lite/game/opponent"
	"rps-lite/predictor"
)

const (
	MaxRounds      = 100
	defaultIdleTTL = 15 * time.Minute
)

var (
	ErrUnknownPersona = errors.New("unknown persona")
	ErrNoMatch        = errors.New("no active match")
)

// Lobby hands out matches: at most one live match per player.
type Lobby struct {
	mu      sync.RWMutex
	matches map[string]*match.Match
	byUser  map[uint64]string

	opponents *opponent.Manager
	ledger    ledger.Service
	tickets   match.TicketIssuer

	defaultRounds int
	idleTTL       time.Duration
}

type Option func(*Lobby)

func WithDefaultRounds(n int) Option {
	return func(l *Lobby) {
		if n > 0 && n <= MaxRounds {
			l.defaultRounds = n
		}
	}
}

func WithIdleTTL(ttl time.Duration) Option {
	return func(l *Lobby) {
		if ttl > 0 {
			l.idleTTL = ttl
		}
	}
}

func New(opponents *opponent.Manager, ledgerService ledger.Service, tickets match.TicketIssuer, opts ...Option) *Lobby {
	l := &Lobby{
		matches:       make(map[string]*match.Match),
		byUser:        make(map[uint64]string),
		opponents:     opponents,
		ledger:        ledgerService,
		tickets:       tickets,
		defaultRounds: game.DefaultMaxRounds,
		idleTTL:       defaultIdleTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartMatch spawns an opponent and starts a match for the player. A persona wins
// over a tier; with neither the first medium persona plays. Any previous match of the
// player is abandoned.
func (l *Lobby) StartMatch(player match.Player, req codec.StartMatchRequest, send func(data []byte)) (*match.Match, error) {
	personaID, err := l.pickPersona(req)
	if err != nil {
		return nil, err
	}
	rounds := req.Rounds
	switch {
	case rounds == 0:
		rounds = l.defaultRounds
	case rounds < 0 || rounds > MaxRounds:
		return nil, fmt.Errorf("rounds must be between 1 and %d", MaxRounds)
	}

	if prev := l.MatchFor(player.UserID); prev != nil {
		if err := prev.Leave(); err != nil && !errors.Is(err, match.ErrMatchClosed) {
			log.Warnf("[Lobby] leave previous match %s failed: %v", prev.ID, err)
		}
		l.remove(prev.ID)
	}

	inst, err := l.opponents.Spawn(personaID, rounds)
	if err != nil {
		return nil, err
	}
	matchID := "m_" + uuid.NewString()
	m, err := match.New(match.Config{
		ID:       matchID,
		Player:   player,
		Opponent: inst,
		Send:     send,
		Ledger:   l.ledger,
		Tickets:  l.tickets,
		OnEnd:    l.onMatchEnd,
	})
	if err != nil {
		l.opponents.Despawn(inst.ID)
		return nil, err
	}

	l.mu.Lock()
	l.matches[matchID] = m
	l.byUser[player.UserID] = matchID
	l.mu.Unlock()

	log.Infof("[Lobby] StartMatch: user %d vs %s in %s", player.UserID, personaID, matchID)
	return m, nil
}

func (l *Lobby) pickPersona(req codec.StartMatchRequest) (string, error) {
	registry := l.opponents.Registry()
	if req.Persona != "" {
		if registry.Get(req.Persona) == nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownPersona, req.Persona)
		}
		return req.Persona, nil
	}
	tier, err := predictor.ParseTierStrict(req.Tier)
	if err != nil {
		return "", err
	}
	candidates := registry.ByTier(tier)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w for tier %s", ErrUnknownPersona, tier)
	}
	return candidates[0].ID, nil
}

// MatchFor returns the player's live match, or nil.
func (l *Lobby) MatchFor(userID uint64) *match.Match {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byUser[userID]
	if !ok {
		return nil
	}
	return l.matches[id]
}

func (l *Lobby) GetMatch(matchID string) *match.Match {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.matches[matchID]
}

// Leave abandons the player's match.
func (l *Lobby) Leave(userID uint64) error {
	m := l.MatchFor(userID)
	if m == nil {
		return ErrNoMatch
	}
	err := m.Leave()
	l.remove(m.ID)
	if errors.Is(err, match.ErrMatchClosed) {
		return nil
	}
	return err
}

func (l *Lobby) Personas() []*opponent.Persona {
	return l.opponents.Registry().All()
}

func (l *Lobby) Live() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.matches)
}

// Sweep abandons matches idle for longer than the idle TTL and returns how many it
// removed.
func (l *Lobby) Sweep() int {
	l.mu.RLock()
	var idle []*match.Match
	for _, m := range l.matches {
		if m.IsIdleFor(l.idleTTL) {
			idle = append(idle, m)
		}
	}
	l.mu.RUnlock()

	for _, m := range idle {
		if err := m.Leave(); err != nil && !errors.Is(err, match.ErrMatchClosed) {
			log.Warnf("[Lobby] sweep %s: %v", m.ID, err)
		}
		l.remove(m.ID)
	}
	if len(idle) > 0 {
		log.Infof("[Lobby] Swept %d idle matches", len(idle))
	}
	return len(idle)
}

// RunJanitor sweeps idle matches until stop is closed.
func (l *Lobby) RunJanitor(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-stop:
			return
		}
	}
}

// Shutdown abandons every live match.
func (l *Lobby) Shutdown() {
	l.mu.RLock()
	all := make([]*match.Match, 0, len(l.matches))
	for _, m := range l.matches {
		all = append(all, m)
	}
	l.mu.RUnlock()

	for _, m := range all {
		_ = m.Leave()
		l.remove(m.ID)
	}
}

func (l *Lobby) remove(matchID string) {
	l.mu.Lock()
	m, ok := l.matches[matchID]
	if ok {
		delete(l.matches, matchID)
		if l.byUser[m.UserID()] == matchID {
			delete(l.byUser, m.UserID())
		}
	}
	l.mu.Unlock()

	if ok {
		m.Stop()
		l.opponents.Despawn(m.Opponent().ID)
	}
}

// onMatchEnd releases a finished match and its opponent.
func (l *Lobby) onMatchEnd(info match.EndInfo) {
	log.Debugf("[Lobby] match %s ended (user=%d abandoned=%v)", info.MatchID, info.UserID, info.Abandoned)
	l.remove(info.MatchID)
}
