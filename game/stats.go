package game

import "rps-lite/move"

// moveHistoryLimit bounds Statistics.MoveHistory.
const moveHistoryLimit = 100

// Statistics accumulates across matches for one player.
type Statistics struct {
	TotalGames  int         `json:"total_games"`
	Wins        int         `json:"wins"`
	Losses      int         `json:"losses"`
	Draws       int         `json:"draws"`
	WinStreak   int         `json:"win_streak"`
	BestStreak  int         `json:"best_streak"`
	MoveHistory []move.Move `json:"move_history"`
}

// Rates are percentages of rounds played.
type Rates struct {
	WinRate    float64 `json:"win_rate"`
	LossRate   float64 `json:"loss_rate"`
	DrawRate   float64 `json:"draw_rate"`
	TotalGames int     `json:"total_games"`
}

// Apply folds one round into the statistics.
func (s *Statistics) Apply(player move.Move, outcome move.Outcome) {
	switch outcome {
	case move.PlayerWin:
		s.Wins++
		s.WinStreak++
	case move.OpponentWin:
		s.Losses++
		s.WinStreak = 0
	default:
		s.Draws++
	}
	if s.WinStreak > s.BestStreak {
		s.BestStreak = s.WinStreak
	}

	s.MoveHistory = append(s.MoveHistory, player)
	if n := len(s.MoveHistory); n > moveHistoryLimit {
		s.MoveHistory = append([]move.Move(nil), s.MoveHistory[n-moveHistoryLimit:]...)
	}
}

// Rounds is the number of rounds folded in.
func (s Statistics) Rounds() int {
	return s.Wins + s.Losses + s.Draws
}

func (s Statistics) Rates() Rates {
	total := s.Rounds()
	if total == 0 {
		return Rates{}
	}
	return Rates{
		WinRate:    float64(s.Wins) / float64(total) * 100,
		LossRate:   float64(s.Losses) / float64(total) * 100,
		DrawRate:   float64(s.Draws) / float64(total) * 100,
		TotalGames: total,
	}
}

func (s Statistics) clone() Statistics {
	s.MoveHistory = append([]move.Move(nil), s.MoveHistory...)
	return s
}
