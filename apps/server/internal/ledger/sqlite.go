package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"rps-lite/apps/server/internal/auth"
)

type SQLiteService struct {
	db     *sql.DB
	owned  bool
	recent int
	now    func() time.Time
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath, err := auth.LocalDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLiteService(dbPath)
}

// NewSQLiteService opens its own handle on the database file.
func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	db, err := auth.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteServiceFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteServiceFromDB uses an already opened database; Close leaves it open.
func NewSQLiteServiceFromDB(db *sql.DB) (*SQLiteService, error) {
	if db == nil {
		return nil, fmt.Errorf("nil sqlite database")
	}
	ctx, cancel := withTimeout(context.Background())
	defer cancel()
	if err := ensureSQLiteLedgerSchema(ctx, db); err != nil {
		return nil, err
	}
	return &SQLiteService{
		db:     db,
		recent: envIntOrDefault("LEDGER_RECENT_LIMIT", defaultRecentLimit),
		now:    time.Now,
	}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) AppendLiveEvent(ctx context.Context, userID uint64, matchID string, item EventItem) error {
	if strings.TrimSpace(matchID) == "" {
		return nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ledger_event_stream (match_id, user_id, seq, event_type, envelope_b64, server_ts_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, seq) DO NOTHING
`, matchID, userID, int64(item.Seq), item.EventType, item.EnvelopeB64, nullableInt64(item.ServerTsMs), s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("append live event %s#%d: %w", matchID, item.Seq, err)
	}
	return nil
}

func (s *SQLiteService) RecordMatch(ctx context.Context, m MatchSummary) error {
	if m.PlayedAt.IsZero() {
		m.PlayedAt = s.now()
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
INSERT INTO ledger_matches (
    match_id, user_id, persona, tier, rounds, player_score, opponent_score, winner, abandoned, played_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id) DO NOTHING
`, m.MatchID, m.UserID, m.Persona, m.Tier, m.Rounds, m.PlayerScore, m.OpponentScore, m.Winner,
		boolToInt(m.Abandoned), m.PlayedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert match %s: %w", m.MatchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	st, err := scanSQLiteStats(tx.QueryRowContext(ctx, sqliteStatsSelect, m.UserID), m.UserID)
	if err != nil {
		return err
	}
	st.absorb(m, s.now())

	_, err = tx.ExecContext(ctx, `
INSERT INTO ledger_user_stats (user_id, total_games, wins, losses, draws, win_streak, best_streak, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    total_games = excluded.total_games,
    wins = excluded.wins,
    losses = excluded.losses,
    draws = excluded.draws,
    win_streak = excluded.win_streak,
    best_streak = excluded.best_streak,
    updated_at_ms = excluded.updated_at_ms
`, st.UserID, st.TotalGames, st.Wins, st.Losses, st.Draws, st.WinStreak, st.BestStreak, st.UpdatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("update stats user=%d: %w", m.UserID, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugf("[Ledger] recorded match %s user=%d %d-%d", m.MatchID, m.UserID, m.PlayerScore, m.OpponentScore)
	return nil
}

const sqliteStatsSelect = `
SELECT total_games, wins, losses, draws, win_streak, best_streak, updated_at_ms
FROM ledger_user_stats WHERE user_id = ?`

func scanSQLiteStats(row *sql.Row, userID uint64) (UserStats, error) {
	st := UserStats{UserID: userID}
	var updatedMs int64
	err := row.Scan(&st.TotalGames, &st.Wins, &st.Losses, &st.Draws, &st.WinStreak, &st.BestStreak, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return UserStats{}, fmt.Errorf("load stats user=%d: %w", userID, err)
	}
	st.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	st.fillRates()
	return st, nil
}

func (s *SQLiteService) Stats(ctx context.Context, userID uint64) (UserStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return scanSQLiteStats(s.db.QueryRowContext(ctx, sqliteStatsSelect, userID), userID)
}

func (s *SQLiteService) RecentMatches(ctx context.Context, userID uint64, limit int) ([]MatchSummary, error) {
	limit = clampLimit(limit, s.recent, maxRecentLimit)
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT match_id, persona, tier, rounds, player_score, opponent_score, winner, abandoned, played_at_ms
FROM ledger_matches
WHERE user_id = ?
ORDER BY played_at_ms DESC, rowid DESC
LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MatchSummary, 0, limit)
	for rows.Next() {
		m := MatchSummary{UserID: userID}
		var abandoned int
		var playedMs int64
		if err := rows.Scan(&m.MatchID, &m.Persona, &m.Tier, &m.Rounds, &m.PlayerScore, &m.OpponentScore,
			&m.Winner, &abandoned, &playedMs); err != nil {
			return nil, err
		}
		m.Abandoned = abandoned != 0
		m.PlayedAt = time.UnixMilli(playedMs).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteService) MatchEvents(ctx context.Context, userID uint64, matchID string) ([]EventItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM ledger_event_stream
WHERE match_id = ? AND user_id = ?
ORDER BY seq ASC
`, matchID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventItem
	for rows.Next() {
		var item EventItem
		var seq int64
		var ts sql.NullInt64
		if err := rows.Scan(&seq, &item.EventType, &item.EnvelopeB64, &ts); err != nil {
			return nil, err
		}
		item.Seq = uint64(seq)
		if ts.Valid {
			v := ts.Int64
			item.ServerTsMs = &v
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteService) SubmitScore(ctx context.Context, entry LeaderboardEntry) (int, error) {
	if entry.AchievedAt.IsZero() {
		entry.AchievedAt = s.now()
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM ledger_leaderboard WHERE match_id = ?`, entry.MatchID).Scan(&exists)
	if err == nil {
		return 0, ErrAlreadySubmitted
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO ledger_leaderboard (match_id, user_id, name, score, rounds, tier, achieved_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, entry.MatchID, entry.UserID, entry.Name, entry.Score, entry.Rounds, entry.Tier, entry.AchievedAt.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert leaderboard entry: %w", err)
	}

	board, err := sqliteBoard(ctx, tx, -1)
	if err != nil {
		return 0, err
	}
	rankBoard(board)
	if len(board) > LeaderboardSize {
		for _, e := range board[LeaderboardSize:] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_leaderboard WHERE match_id = ?`, e.MatchID); err != nil {
				return 0, err
			}
		}
		board = board[:LeaderboardSize]
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rankOf(board, entry.MatchID), nil
}

func (s *SQLiteService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = clampLimit(limit, LeaderboardSize, LeaderboardSize)
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	board, err := sqliteBoard(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	rankBoard(board)
	return board, nil
}

type sqliteQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqliteBoard(ctx context.Context, q sqliteQuerier, limit int) ([]LeaderboardEntry, error) {
	rows, err := q.QueryContext(ctx, `
SELECT match_id, user_id, name, score, rounds, tier, achieved_at_ms
FROM ledger_leaderboard
ORDER BY score DESC, achieved_at_ms ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var achievedMs int64
		if err := rows.Scan(&e.MatchID, &e.UserID, &e.Name, &e.Score, &e.Rounds, &e.Tier, &achievedMs); err != nil {
			return nil, err
		}
		e.AchievedAt = time.UnixMilli(achievedMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func ensureSQLiteLedgerSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS ledger_event_stream (
    match_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL,
    server_ts_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    PRIMARY KEY (match_id, seq)
)`,
		`
CREATE TABLE IF NOT EXISTS ledger_matches (
    match_id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    persona TEXT NOT NULL,
    tier TEXT NOT NULL,
    rounds INTEGER NOT NULL,
    player_score INTEGER NOT NULL,
    opponent_score INTEGER NOT NULL,
    winner TEXT NOT NULL,
    abandoned INTEGER NOT NULL DEFAULT 0,
    played_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_matches_user ON ledger_matches (user_id, played_at_ms DESC)`,
		`
CREATE TABLE IF NOT EXISTS ledger_user_stats (
    user_id INTEGER PRIMARY KEY,
    total_games INTEGER NOT NULL,
    wins INTEGER NOT NULL,
    losses INTEGER NOT NULL,
    draws INTEGER NOT NULL,
    win_streak INTEGER NOT NULL,
    best_streak INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS ledger_leaderboard (
    match_id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    score INTEGER NOT NULL,
    rounds INTEGER NOT NULL,
    tier TEXT NOT NULL,
    achieved_at_ms INTEGER NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
