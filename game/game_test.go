package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-lite/move"
	"rps-lite/predictor"
)

func newVsAI(t *testing.T, rounds int, tier predictor.Tier) *Game {
	t.Helper()
	params := predictor.DefaultParams(tier)
	params.ExplorationRate = 0
	g, err := NewGame(Config{Mode: ModeVsAI, MaxRounds: rounds, Tier: tier, Params: params, Seed: 7})
	require.NoError(t, err)
	return g
}

func TestNewGameDefaults(t *testing.T) {
	g, err := NewGame(Config{Seed: 1})
	require.NoError(t, err)
	cfg := g.Config()
	assert.Equal(t, ModeVsAI, cfg.Mode)
	assert.Equal(t, DefaultMaxRounds, cfg.MaxRounds)
	assert.Equal(t, predictor.TierMedium, cfg.Tier)
}

func TestNewGameRejectsBadConfig(t *testing.T) {
	_, err := NewGame(Config{Mode: "tournament"})
	assert.Error(t, err)

	_, err = NewGame(Config{MaxRounds: -1})
	assert.Error(t, err)

	_, err = NewGame(Config{Params: predictor.Params{ExplorationRate: 1.5}})
	assert.Error(t, err)
}

func TestPlayRoundScoresAgainstOpponentMove(t *testing.T) {
	g := newVsAI(t, 10, predictor.TierEasy)
	for i := 0; i < 10; i++ {
		res, err := g.PlayRound(move.Rock)
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Round)
		assert.True(t, res.OpponentMove.Valid())
		assert.Equal(t, move.Judge(move.Rock, res.OpponentMove), res.Outcome)
		assert.Equal(t, res.OpponentMove, res.Prediction.Opponent)
	}

	snap := g.Snapshot()
	assert.True(t, snap.Ended)
	assert.Equal(t, 10, snap.Stats.Rounds())
	assert.Equal(t, snap.Stats.Wins, snap.Score.Player)
	assert.Equal(t, snap.Stats.Losses, snap.Score.Opponent)
	assert.Equal(t, 1, snap.Stats.TotalGames)
	assert.Len(t, snap.Rounds, 10)
}

func TestMatchEndsAfterMaxRounds(t *testing.T) {
	g := newVsAI(t, 3, predictor.TierMedium)
	for i := 0; i < 3; i++ {
		_, err := g.PlayRound(move.Paper)
		require.NoError(t, err)
	}
	_, ok := g.Winner()
	assert.True(t, ok)

	_, err := g.PlayRound(move.Paper)
	assert.ErrorIs(t, err, ErrMatchOver)

	g.NewMatch()
	snap := g.Snapshot()
	assert.Equal(t, 0, snap.Round)
	assert.False(t, snap.Ended)
	assert.Equal(t, Score{}, snap.Score)
	assert.Equal(t, 3, snap.Stats.Rounds(), "lifetime stats survive a new match")
}

func TestPlayRoundRejectsInvalidMove(t *testing.T) {
	g := newVsAI(t, 3, predictor.TierEasy)
	_, err := g.PlayRound(move.None)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, 0, g.Snapshot().Round)
}

func TestHardOpponentPunishesRepeatedMove(t *testing.T) {
	g := newVsAI(t, 30, predictor.TierHard)
	losses := 0
	for i := 0; i < 30; i++ {
		res, err := g.PlayRound(move.Scissors)
		require.NoError(t, err)
		if i >= 3 {
			assert.Equal(t, move.Rock, res.OpponentMove, "round %d", res.Round)
		}
		if res.Outcome == move.OpponentWin {
			losses++
		}
	}
	assert.GreaterOrEqual(t, losses, 27)
}

func TestSetDifficultyResetsOpponent(t *testing.T) {
	g := newVsAI(t, 20, predictor.TierHard)
	for i := 0; i < 5; i++ {
		_, err := g.PlayRound(move.Scissors)
		require.NoError(t, err)
	}
	require.NoError(t, g.SetDifficulty(predictor.TierMedium, predictor.Params{}))
	assert.Equal(t, predictor.TierMedium, g.Config().Tier)

	res, err := g.PlayRound(move.Scissors)
	require.NoError(t, err)
	assert.Equal(t, predictor.StrategyRandom, res.Prediction.Strategy)
}

func TestLocalMode(t *testing.T) {
	g, err := NewGame(Config{Mode: ModeLocal, MaxRounds: 2})
	require.NoError(t, err)

	_, err = g.PlayRound(move.Rock)
	assert.ErrorIs(t, err, ErrWrongMode)
	assert.ErrorIs(t, g.SetDifficulty(predictor.TierHard, predictor.Params{}), ErrWrongMode)

	res, err := g.PlayLocal(move.Rock, move.Scissors)
	require.NoError(t, err)
	assert.Equal(t, move.PlayerWin, res.Outcome)

	_, err = g.PlayLocal(move.Rock, move.None)
	assert.ErrorIs(t, err, ErrInvalidMove)

	res, err = g.PlayLocal(move.Rock, move.Paper)
	require.NoError(t, err)
	assert.True(t, res.MatchOver)

	winner, ok := g.Winner()
	assert.True(t, ok)
	assert.Equal(t, move.Draw, winner)
}

func TestSameSeedReplaysIdentically(t *testing.T) {
	moves := []move.Move{move.Rock, move.Paper, move.Paper, move.Scissors, move.Rock, move.Rock, move.Paper, move.Scissors}
	play := func() []move.Move {
		g, err := NewGame(Config{MaxRounds: len(moves), Tier: predictor.TierHard, Params: predictor.DefaultParams(predictor.TierHard), Seed: 99})
		require.NoError(t, err)
		out := make([]move.Move, 0, len(moves))
		for _, m := range moves {
			res, err := g.PlayRound(m)
			require.NoError(t, err)
			out = append(out, res.OpponentMove)
		}
		return out
	}
	assert.Equal(t, play(), play())
}

func TestAbandonCountsPartialMatch(t *testing.T) {
	g := newVsAI(t, 5, predictor.TierEasy)
	_, err := g.PlayRound(move.Rock)
	require.NoError(t, err)
	g.Abandon()
	g.Abandon()
	snap := g.Snapshot()
	assert.True(t, snap.Ended)
	assert.Equal(t, 1, snap.Stats.TotalGames)
}

func TestNewMatchCountsInterruptedMatch(t *testing.T) {
	g := newVsAI(t, 5, predictor.TierEasy)
	for i := 0; i < 2; i++ {
		_, err := g.PlayRound(move.Paper)
		require.NoError(t, err)
	}
	g.NewMatch()
	snap := g.Snapshot()
	assert.Equal(t, 1, snap.Stats.TotalGames)
	assert.Equal(t, 2, snap.Stats.Rounds())
	assert.Equal(t, 0, snap.Round)

	// A fresh match with no rounds is not counted.
	g.NewMatch()
	assert.Equal(t, 1, g.Snapshot().Stats.TotalGames)
}

func TestSetDifficultyReportsNormalizedParams(t *testing.T) {
	g := newVsAI(t, 5, predictor.TierEasy)
	require.NoError(t, g.SetDifficulty(predictor.TierHard, predictor.Params{ExplorationRate: 0.2}))
	assert.Equal(t, predictor.DefaultParams(predictor.TierHard), g.Config().Params)
}

func TestStatisticsStreaksAndRates(t *testing.T) {
	var s Statistics
	s.Apply(move.Rock, move.PlayerWin)
	s.Apply(move.Rock, move.PlayerWin)
	s.Apply(move.Paper, move.OpponentWin)
	s.Apply(move.Paper, move.PlayerWin)
	s.Apply(move.Scissors, move.Draw)

	assert.Equal(t, 3, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.Draws)
	assert.Equal(t, 1, s.WinStreak)
	assert.Equal(t, 2, s.BestStreak)

	rates := s.Rates()
	assert.InDelta(t, 60.0, rates.WinRate, 1e-9)
	assert.InDelta(t, 20.0, rates.LossRate, 1e-9)
	assert.InDelta(t, 20.0, rates.DrawRate, 1e-9)
	assert.Equal(t, 5, rates.TotalGames)

	assert.Equal(t, Rates{}, Statistics{}.Rates())
}

func TestStatisticsMoveHistoryIsBounded(t *testing.T) {
	var s Statistics
	for i := 0; i < moveHistoryLimit+25; i++ {
		s.Apply(move.FromIndex(i%move.Count), move.Draw)
	}
	assert.Len(t, s.MoveHistory, moveHistoryLimit)
	assert.Equal(t, move.FromIndex((moveHistoryLimit+24)%move.Count), s.MoveHistory[moveHistoryLimit-1])
}
