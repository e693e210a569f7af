package game

import (
	"fmt"
	"sync"
	"time"

	"rps-lite/move"
	"rps-lite/predictor"
)

type Score struct {
	Player   int `json:"player"`
	Opponent int `json:"opponent"`
}

// RoundResult is one completed round. In local mode the opponent is the second player
// and Prediction is empty.
type RoundResult struct {
	Round        int                  `json:"round"`
	PlayerMove   move.Move            `json:"player_move"`
	OpponentMove move.Move            `json:"opponent_move"`
	Outcome      move.Outcome         `json:"outcome"`
	Prediction   predictor.Prediction `json:"prediction"`
	Score        Score                `json:"score"`
	MatchOver    bool                 `json:"match_over"`
	PlayedAt     time.Time            `json:"played_at"`
}

// Game is one player's session: a match of MaxRounds rounds against the predictor
// (or a second local player), plus lifetime statistics across matches.
type Game struct {
	cfg Config

	mu sync.Mutex

	opponent *predictor.Predictor

	round  int
	score  Score
	rounds []RoundResult
	ended  bool

	stats Statistics

	now func() time.Time
}

func NewGame(cfg Config) (*Game, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Game{
		cfg:    cfg,
		rounds: make([]RoundResult, 0, cfg.MaxRounds),
		now:    time.Now,
	}
	if cfg.Mode == ModeVsAI {
		g.opponent = predictor.New(cfg.Tier, cfg.Params, predictor.NewRandomSource(seed))
		g.cfg.Tier = g.opponent.Tier()
	}
	return g, nil
}

// PlayRound plays the player's move against the computer. The opponent commits to its
// move before the player's move is recorded.
func (g *Game) PlayRound(player move.Move) (RoundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cfg.Mode != ModeVsAI {
		return RoundResult{}, ErrWrongMode
	}
	if err := g.checkPlayableLocked(player); err != nil {
		return RoundResult{}, err
	}

	pred := g.opponent.PredictDetailed()
	res := g.settleLocked(player, pred.Opponent)
	res.Prediction = pred
	g.opponent.Record(player)
	g.rounds[len(g.rounds)-1] = res
	return res, nil
}

// PlayLocal plays a round between two local players.
func (g *Game) PlayLocal(player1, player2 move.Move) (RoundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cfg.Mode != ModeLocal {
		return RoundResult{}, ErrWrongMode
	}
	if err := g.checkPlayableLocked(player1); err != nil {
		return RoundResult{}, err
	}
	if !player2.Valid() {
		return RoundResult{}, fmt.Errorf("player 2: %w", ErrInvalidMove)
	}
	return g.settleLocked(player1, player2), nil
}

func (g *Game) checkPlayableLocked(m move.Move) error {
	if g.ended {
		return ErrMatchOver
	}
	if !m.Valid() {
		return ErrInvalidMove
	}
	return nil
}

func (g *Game) settleLocked(player, opponent move.Move) RoundResult {
	outcome := move.Judge(player, opponent)
	switch outcome {
	case move.PlayerWin:
		g.score.Player++
	case move.OpponentWin:
		g.score.Opponent++
	}
	g.stats.Apply(player, outcome)
	g.round++

	if g.cfg.MaxRounds > 0 && g.round >= g.cfg.MaxRounds {
		g.ended = true
		g.stats.TotalGames++
	}

	res := RoundResult{
		Round:        g.round,
		PlayerMove:   player,
		OpponentMove: opponent,
		Outcome:      outcome,
		Score:        g.score,
		MatchOver:    g.ended,
		PlayedAt:     g.now(),
	}
	g.rounds = append(g.rounds, res)
	return res
}

// SetDifficulty changes the opponent tier. The opponent forgets everything it learned.
func (g *Game) SetDifficulty(tier predictor.Tier, params predictor.Params) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.opponent == nil {
		return ErrWrongMode
	}
	g.opponent.Configure(tier, params)
	g.cfg.Tier = g.opponent.Tier()
	g.cfg.Params = g.opponent.Params()
	return nil
}

// NewMatch starts a fresh match. Lifetime statistics are kept; the opponent's learned
// state is not.
func (g *Game) NewMatch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closeMatchLocked()
	g.round = 0
	g.score = Score{}
	g.rounds = g.rounds[:0]
	g.ended = false
	if g.opponent != nil {
		g.opponent.Reset()
	}
}

// Abandon ends the current match early. Rounds already played stay in the statistics.
func (g *Game) Abandon() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closeMatchLocked()
	g.ended = true
}

// closeMatchLocked counts an unfinished match that has rounds in it. Finished matches
// were counted when their last round settled.
func (g *Game) closeMatchLocked() {
	if !g.ended && g.round > 0 {
		g.stats.TotalGames++
	}
}

// Rounds returns the rounds of the current match.
func (g *Game) Rounds() []RoundResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]RoundResult(nil), g.rounds...)
}

func (g *Game) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// Winner reports the match result from the player's side. ok is false while the match
// is still running.
func (g *Game) Winner() (outcome move.Outcome, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ended {
		return move.Draw, false
	}
	return winnerOf(g.score), true
}

func winnerOf(s Score) move.Outcome {
	switch {
	case s.Player > s.Opponent:
		return move.PlayerWin
	case s.Opponent > s.Player:
		return move.OpponentWin
	default:
		return move.Draw
	}
}
