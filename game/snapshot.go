package game

import (
	"rps-lite/move"
	"rps-lite/predictor"
)

type Snapshot struct {
	Mode      Mode
	Tier      predictor.Tier
	Round     int
	MaxRounds int
	Ended     bool
	Score     Score
	Winner    move.Outcome

	Rounds []RoundResult
	Stats  Statistics
	Rates  Rates
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Mode:      g.cfg.Mode,
		Tier:      g.cfg.Tier,
		Round:     g.round,
		MaxRounds: g.cfg.MaxRounds,
		Ended:     g.ended,
		Score:     g.score,
		Rounds:    append([]RoundResult(nil), g.rounds...),
		Stats:     g.stats.clone(),
		Rates:     g.stats.Rates(),
	}
	if g.ended {
		s.Winner = winnerOf(g.score)
	}
	return s
}
