package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemoryService struct {
	mu      sync.Mutex
	events  map[string][]EventItem // matchID -> events
	owners  map[string]uint64      // matchID -> userID
	matches map[uint64][]MatchSummary
	stats   map[uint64]UserStats
	board   []LeaderboardEntry
	now     func() time.Time
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		events:  make(map[string][]EventItem),
		owners:  make(map[string]uint64),
		matches: make(map[uint64][]MatchSummary),
		stats:   make(map[uint64]UserStats),
		now:     time.Now,
	}
}

func (s *MemoryService) Close() error { return nil }

func (s *MemoryService) AppendLiveEvent(_ context.Context, userID uint64, matchID string, item EventItem) error {
	if strings.TrimSpace(matchID) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events[matchID] {
		if e.Seq == item.Seq {
			return nil
		}
	}
	s.owners[matchID] = userID
	s.events[matchID] = append(s.events[matchID], item)
	return nil
}

func (s *MemoryService) RecordMatch(_ context.Context, m MatchSummary) error {
	if m.PlayedAt.IsZero() {
		m.PlayedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prev := range s.matches[m.UserID] {
		if prev.MatchID == m.MatchID {
			return nil
		}
	}
	s.matches[m.UserID] = append(s.matches[m.UserID], m)
	st := s.stats[m.UserID]
	st.absorb(m, s.now())
	s.stats[m.UserID] = st
	return nil
}

func (s *MemoryService) Stats(_ context.Context, userID uint64) (UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		return UserStats{UserID: userID}, nil
	}
	return st, nil
}

func (s *MemoryService) RecentMatches(_ context.Context, userID uint64, limit int) ([]MatchSummary, error) {
	limit = clampLimit(limit, defaultRecentLimit, maxRecentLimit)
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.matches[userID]
	out := make([]MatchSummary, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryService) MatchEvents(_ context.Context, userID uint64, matchID string) ([]EventItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[matchID]
	if !ok || owner != userID {
		return nil, ErrNotFound
	}
	out := append([]EventItem(nil), s.events[matchID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryService) SubmitScore(_ context.Context, entry LeaderboardEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.board {
		if e.MatchID == entry.MatchID {
			return 0, ErrAlreadySubmitted
		}
	}
	if entry.AchievedAt.IsZero() {
		entry.AchievedAt = s.now()
	}
	s.board = append(s.board, entry)
	rankBoard(s.board)
	if len(s.board) > LeaderboardSize {
		s.board = s.board[:LeaderboardSize]
	}
	return rankOf(s.board, entry.MatchID), nil
}

func (s *MemoryService) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	limit = clampLimit(limit, LeaderboardSize, LeaderboardSize)
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.board) {
		limit = len(s.board)
	}
	return append([]LeaderboardEntry(nil), s.board[:limit]...), nil
}
