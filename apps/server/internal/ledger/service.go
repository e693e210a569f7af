package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"rps-lite/game"
	"rps-lite/move"
)

const (
	// LeaderboardSize is how many entries the leaderboard keeps.
	LeaderboardSize    = 10
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	opTimeout          = 5 * time.Second
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("match already submitted")
)

// Service persists live match events, finished matches, per-user statistics and the
// leaderboard.
type Service interface {
	Close() error
	AppendLiveEvent(ctx context.Context, userID uint64, matchID string, item EventItem) error
	// RecordMatch stores a finished or abandoned match and folds its rounds into the
	// user's statistics.
	RecordMatch(ctx context.Context, summary MatchSummary) error
	Stats(ctx context.Context, userID uint64) (UserStats, error)
	RecentMatches(ctx context.Context, userID uint64, limit int) ([]MatchSummary, error)
	MatchEvents(ctx context.Context, userID uint64, matchID string) ([]EventItem, error)
	// SubmitScore inserts an entry and trims the board to LeaderboardSize. The returned
	// rank is 1-based, or 0 when the entry did not make the board.
	SubmitScore(ctx context.Context, entry LeaderboardEntry) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  *int64 `json:"server_ts_ms,omitempty"`
}

type MatchSummary struct {
	MatchID       string    `json:"match_id"`
	UserID        uint64    `json:"user_id"`
	Persona       string    `json:"persona"`
	Tier          string    `json:"tier"`
	Rounds        int       `json:"rounds"`
	PlayerScore   int       `json:"player_score"`
	OpponentScore int       `json:"opponent_score"`
	Winner        string    `json:"winner"`
	Abandoned     bool      `json:"abandoned"`
	PlayedAt      time.Time `json:"played_at"`

	// Outcomes lists every round in order; only used to update statistics.
	Outcomes []move.Outcome `json:"-"`
}

type UserStats struct {
	UserID     uint64    `json:"user_id"`
	TotalGames int       `json:"total_games"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Draws      int       `json:"draws"`
	WinStreak  int       `json:"win_streak"`
	BestStreak int       `json:"best_streak"`
	WinRate    float64   `json:"win_rate"`
	LossRate   float64   `json:"loss_rate"`
	DrawRate   float64   `json:"draw_rate"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	UserID     uint64    `json:"user_id"`
	Name       string    `json:"name"`
	MatchID    string    `json:"match_id"`
	Score      int       `json:"score"`
	Rounds     int       `json:"rounds"`
	Tier       string    `json:"tier"`
	AchievedAt time.Time `json:"achieved_at"`
}

// absorb folds a match into the statistics using the same rules as game.Statistics.
func (s *UserStats) absorb(m MatchSummary, now time.Time) {
	st := game.Statistics{
		TotalGames: s.TotalGames,
		Wins:       s.Wins,
		Losses:     s.Losses,
		Draws:      s.Draws,
		WinStreak:  s.WinStreak,
		BestStreak: s.BestStreak,
	}
	for _, o := range m.Outcomes {
		st.Apply(move.None, o)
	}
	st.TotalGames++

	s.UserID = m.UserID
	s.TotalGames = st.TotalGames
	s.Wins, s.Losses, s.Draws = st.Wins, st.Losses, st.Draws
	s.WinStreak, s.BestStreak = st.WinStreak, st.BestStreak
	s.UpdatedAt = now
	s.fillRates()
}

func (s *UserStats) fillRates() {
	r := game.Statistics{Wins: s.Wins, Losses: s.Losses, Draws: s.Draws}.Rates()
	s.WinRate, s.LossRate, s.DrawRate = r.WinRate, r.LossRate, r.DrawRate
}

// rankBoard orders entries best first: higher score, then earlier achievement.
func rankBoard(entries []LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].AchievedAt.Before(entries[j].AchievedAt)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

func rankOf(entries []LeaderboardEntry, matchID string) int {
	for _, e := range entries {
		if e.MatchID == matchID {
			return e.Rank
		}
	}
	return 0
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opTimeout)
}

// NewServiceFromEnv picks the backend matching the auth mode, so a local SQLite
// deployment keeps everything in one file.
func NewServiceFromEnv(authMode string) (Service, string, error) {
	switch strings.ToLower(strings.TrimSpace(authMode)) {
	case "memory":
		return NewMemoryService(), "memory", nil
	case "sqlite", "local":
		s, err := NewSQLiteServiceFromEnv()
		if err != nil {
			return nil, "", err
		}
		return s, "sqlite", nil
	case "postgres":
		s, err := NewPostgresService(context.Background(), dsnFromEnv())
		if err != nil {
			return nil, "", err
		}
		return s, "postgres", nil
	default:
		return nil, "", fmt.Errorf("no ledger backend for auth mode %q", authMode)
	}
}

func envIntOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
