package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"rps-lite/apps/server/internal/codec"
	"rps-lite/apps/server/internal/ledger"
	"rps-lite/apps/server/internal/ticket"
	"rps-lite/game"
	"rps-lite/game/opponent"
	"rps-lite/move"
	"rps-lite/predictor"
	"rps-lite/replay"
)

var ErrMatchClosed = errors.New("match closed")

// TicketIssuer signs the result of a finished match for leaderboard submission.
type TicketIssuer interface {
	Issue(c ticket.Claims) (string, error)
}

// EndInfo is passed to the end hook once a match is finished or abandoned.
type EndInfo struct {
	MatchID   string
	UserID    uint64
	Instance  *opponent.Instance
	Summary   ledger.MatchSummary
	Abandoned bool
}

type EndHook func(info EndInfo)

// Player identifies the account a match belongs to.
type Player struct {
	UserID   uint64
	Username string
}

// Config wires a match to its opponent, its client and the backing services.
type Config struct {
	ID       string
	Player   Player
	Opponent *opponent.Instance
	Send     func(data []byte)
	Ledger   ledger.Service
	Tickets  TicketIssuer
	OnEnd    EndHook
}

// Match is one player's game against a spawned opponent, run as an actor.
type Match struct {
	ID     string
	player Player
	inst   *opponent.Instance

	mu       sync.RWMutex
	closed   bool
	finished bool
	endInfo  *EndInfo
	stopOnce sync.Once

	events chan Event
	done   chan struct{}

	serverSeq  uint64
	lastActive time.Time

	send    func(data []byte)
	ledger  ledger.Service
	tickets TicketIssuer
	onEnd   EndHook
	now     func() time.Time
}

type EventType int

const (
	EventPlay EventType = iota
	EventSetDifficulty
	EventLeave
)

type Event struct {
	Type      EventType
	Move      move.Move
	Tier      string
	Timestamp time.Time
	Response  chan error
}

const ledgerTimeout = 3 * time.Second

// New starts the actor and announces the match to the client.
func New(cfg Config) (*Match, error) {
	if cfg.Opponent == nil || cfg.Opponent.Game == nil {
		return nil, fmt.Errorf("match %s: no opponent", cfg.ID)
	}
	m := &Match{
		ID:         cfg.ID,
		player:     cfg.Player,
		inst:       cfg.Opponent,
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
		lastActive: time.Now(),
		send:       cfg.Send,
		ledger:     cfg.Ledger,
		tickets:    cfg.Tickets,
		onEnd:      cfg.OnEnd,
		now:        time.Now,
	}

	gc := m.inst.Game.Config()
	m.emit(codec.TypeMatchStarted, codec.MatchStarted{
		Persona: codec.PersonaInfo{
			ID:      m.inst.Persona.ID,
			Name:    m.inst.Persona.Name,
			Tagline: m.inst.Persona.Tagline,
			Tier:    gc.Tier.String(),
		},
		Tier:      gc.Tier.String(),
		MaxRounds: gc.MaxRounds,
	})

	go m.run()

	log.Infof("[Match %s] Created (user=%d opponent=%s tier=%s rounds=%d)",
		m.ID, m.player.UserID, m.inst.Persona.Name, gc.Tier, gc.MaxRounds)
	return m, nil
}

func (m *Match) run() {
	for {
		select {
		case event := <-m.events:
			err := m.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
			m.notifyEnd()
			if m.IsClosed() {
				m.Stop()
			}
		case <-m.done:
			log.Debugf("[Match %s] Actor stopped", m.ID)
			return
		}
	}
}

func (m *Match) handleEvent(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMatchClosed
	}
	m.lastActive = e.Timestamp

	switch e.Type {
	case EventPlay:
		return m.handlePlay(e.Move)
	case EventSetDifficulty:
		return m.handleSetDifficulty(e.Tier)
	case EventLeave:
		m.handleLeave()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (m *Match) handlePlay(mv move.Move) error {
	res, err := m.inst.Game.PlayRound(mv)
	if err != nil {
		return err
	}
	m.emit(codec.TypeRoundResult, codec.RoundResultFrom(res))
	if res.MatchOver {
		m.finishLocked(false)
	}
	return nil
}

func (m *Match) handleSetDifficulty(raw string) error {
	if m.finished {
		return game.ErrMatchOver
	}
	tier, err := predictor.ParseTierStrict(raw)
	if err != nil {
		return err
	}
	if err := m.inst.Game.SetDifficulty(tier, predictor.DefaultParams(tier)); err != nil {
		return err
	}
	m.emit(codec.TypeDifficultyChanged, codec.DifficultyChanged{Tier: tier.String()})
	log.Infof("[Match %s] Difficulty set to %s", m.ID, tier)
	return nil
}

func (m *Match) handleLeave() {
	if !m.finished {
		m.inst.Game.Abandon()
		m.finishLocked(true)
	}
	m.closed = true
}

// finishLocked records the match, issues a ticket for a completed one and tells the
// client how it ended.
func (m *Match) finishLocked(abandoned bool) {
	if m.finished {
		return
	}
	m.finished = true

	snap := m.inst.Game.Snapshot()
	winner, _ := m.inst.Game.Winner()
	outcomes := make([]move.Outcome, 0, len(snap.Rounds))
	for _, r := range snap.Rounds {
		outcomes = append(outcomes, r.Outcome)
	}
	summary := ledger.MatchSummary{
		MatchID:       m.ID,
		UserID:        m.player.UserID,
		Persona:       m.inst.Persona.ID,
		Tier:          snap.Tier.String(),
		Rounds:        len(snap.Rounds),
		PlayerScore:   snap.Score.Player,
		OpponentScore: snap.Score.Opponent,
		Winner:        winner.String(),
		Abandoned:     abandoned,
		PlayedAt:      m.now(),
		Outcomes:      outcomes,
	}

	if m.ledger != nil && summary.Rounds > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		if err := m.ledger.RecordMatch(ctx, summary); err != nil {
			log.Warnf("[Match %s] record match failed: %v", m.ID, err)
		}
		cancel()
	}

	end := codec.MatchEnd{
		Winner:    summary.Winner,
		Score:     snap.Score,
		Rounds:    summary.Rounds,
		Abandoned: abandoned,
	}
	if !abandoned && m.tickets != nil {
		raw, err := m.tickets.Issue(ticket.Claims{
			UserID:        m.player.UserID,
			Username:      m.player.Username,
			MatchID:       m.ID,
			Persona:       m.inst.Persona.ID,
			Tier:          summary.Tier,
			PlayerScore:   summary.PlayerScore,
			OpponentScore: summary.OpponentScore,
			Rounds:        summary.Rounds,
		})
		if err != nil {
			log.Warnf("[Match %s] issue ticket failed: %v", m.ID, err)
		} else {
			end.Ticket = raw
		}
	}
	m.emit(codec.TypeMatchEnd, end)

	log.Infof("[Match %s] Ended %d-%d winner=%s abandoned=%v",
		m.ID, summary.PlayerScore, summary.OpponentScore, summary.Winner, abandoned)

	m.endInfo = &EndInfo{MatchID: m.ID, UserID: m.player.UserID, Instance: m.inst, Summary: summary, Abandoned: abandoned}
}

// notifyEnd runs the end hook once the event that finished the match has been answered.
func (m *Match) notifyEnd() {
	m.mu.Lock()
	info := m.endInfo
	m.endInfo = nil
	m.mu.Unlock()
	if info != nil && m.onEnd != nil {
		go m.onEnd(*info)
	}
}

// emit sends a server message to the client and appends it to the live event stream.
func (m *Match) emit(kind string, payload any) {
	m.serverSeq++
	seq := m.serverSeq
	now := m.now()
	env := codec.Wrap(kind, m.ID, seq, now, payload)

	data, err := codec.Encode(env)
	if err != nil {
		log.Errorf("[Match %s] encode %s failed: %v", m.ID, kind, err)
		return
	}
	if m.send != nil {
		m.send(data)
	}
	m.appendLiveEvent(kind, seq, now, payload)
}

func (m *Match) appendLiveEvent(kind string, seq uint64, now time.Time, payload any) {
	if m.ledger == nil || strings.TrimSpace(m.ID) == "" {
		return
	}
	fields, err := codec.PayloadMap(payload)
	if err != nil {
		log.Warnf("[Match %s] flatten %s payload failed: %v", m.ID, kind, err)
		return
	}
	b64, err := replay.EncodeEvent(m.ID, seq, kind, fields)
	if err != nil {
		log.Warnf("[Match %s] encode %s envelope failed: %v", m.ID, kind, err)
		return
	}
	ts := now.UTC().UnixMilli()
	item := ledger.EventItem{Seq: seq, EventType: kind, EnvelopeB64: b64, ServerTsMs: &ts}

	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := m.ledger.AppendLiveEvent(ctx, m.player.UserID, m.ID, item); err != nil {
		log.Warnf("[Match %s] append live event failed: seq=%d err=%v", m.ID, seq, err)
	}
}

// SubmitEvent sends an event to the actor and waits for it to be handled.
func (m *Match) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrMatchClosed
	}

	select {
	case m.events <- e:
	case <-m.done:
		return ErrMatchClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-m.done:
		// The actor answers before it stops.
		select {
		case err := <-e.Response:
			return err
		default:
			return ErrMatchClosed
		}
	}
}

func (m *Match) Play(mv move.Move) error {
	return m.SubmitEvent(Event{Type: EventPlay, Move: mv})
}

func (m *Match) SetDifficulty(tier string) error {
	return m.SubmitEvent(Event{Type: EventSetDifficulty, Tier: tier})
}

// Leave abandons an unfinished match and stops the actor.
func (m *Match) Leave() error {
	return m.SubmitEvent(Event{Type: EventLeave})
}

// Stop shuts down the actor without recording anything.
func (m *Match) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Match) stopLocked() {
	m.closed = true
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

func (m *Match) UserID() uint64 {
	return m.player.UserID
}

func (m *Match) Opponent() *opponent.Instance {
	return m.inst
}

func (m *Match) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Match) IsFinished() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.finished
}

// IsIdleFor reports whether the match is closed or has seen no event for ttl.
func (m *Match) IsIdleFor(ttl time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return true
	}
	return time.Since(m.lastActive) >= ttl
}

// Snapshot returns the current game state (thread-safe).
func (m *Match) Snapshot() game.Snapshot {
	return m.inst.Game.Snapshot()
}
