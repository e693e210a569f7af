package match

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rps-lite/apps/server/internal/codec"
	"rps-lite/apps/server/internal/ledger"
	"rps-lite/apps/server/internal/ticket"
	"rps-lite/game"
	"rps-lite/game/opponent"
	"rps-lite/move"
	"rps-lite/replay"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Close() error { return nil }

func (m *MockLedger) AppendLiveEvent(ctx context.Context, userID uint64, matchID string, item ledger.EventItem) error {
	args := m.Called(ctx, userID, matchID, item)
	return args.Error(0)
}

func (m *MockLedger) RecordMatch(ctx context.Context, summary ledger.MatchSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockLedger) Stats(ctx context.Context, userID uint64) (ledger.UserStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(ledger.UserStats), args.Error(1)
}

func (m *MockLedger) RecentMatches(ctx context.Context, userID uint64, limit int) ([]ledger.MatchSummary, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]ledger.MatchSummary), args.Error(1)
}

func (m *MockLedger) MatchEvents(ctx context.Context, userID uint64, matchID string) ([]ledger.EventItem, error) {
	args := m.Called(ctx, userID, matchID)
	return args.Get(0).([]ledger.EventItem), args.Error(1)
}

func (m *MockLedger) SubmitScore(ctx context.Context, entry ledger.LeaderboardEntry) (int, error) {
	args := m.Called(ctx, entry)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Leaderboard(ctx context.Context, limit int) ([]ledger.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]ledger.LeaderboardEntry), args.Error(1)
}

type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Issue(c ticket.Claims) (string, error) {
	args := m.Called(c)
	return args.String(0), args.Error(1)
}

type outbox struct {
	mu   sync.Mutex
	msgs []map[string]any
}

func (o *outbox) send(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		panic(err)
	}
	o.mu.Lock()
	o.msgs = append(o.msgs, msg)
	o.mu.Unlock()
}

func (o *outbox) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m["type"].(string))
	}
	return out
}

func (o *outbox) last() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.msgs[len(o.msgs)-1]
}

func spawn(t *testing.T, persona string, rounds int) *opponent.Instance {
	t.Helper()
	r := opponent.NewRegistry()
	require.NoError(t, r.LoadDefaults())
	inst, err := opponent.NewManager(r, 99).Spawn(persona, rounds)
	require.NoError(t, err)
	return inst
}

func TestMatchPlaysToEndAndIssuesTicket(t *testing.T) {
	led := new(MockLedger)
	led.On("AppendLiveEvent", mock.Anything, uint64(5), "m-1", mock.Anything).Return(nil)
	led.On("RecordMatch", mock.Anything, mock.MatchedBy(func(s ledger.MatchSummary) bool {
		return s.MatchID == "m-1" && s.UserID == 5 && s.Rounds == 2 && len(s.Outcomes) == 2 && !s.Abandoned
	})).Return(nil).Once()

	iss := new(MockIssuer)
	iss.On("Issue", mock.MatchedBy(func(c ticket.Claims) bool {
		return c.MatchID == "m-1" && c.UserID == 5 && c.Username == "dana" && c.Rounds == 2 && c.Persona == "rookie"
	})).Return("signed-ticket", nil).Once()

	ended := make(chan EndInfo, 1)
	out := &outbox{}
	m, err := New(Config{
		ID:       "m-1",
		Player:   Player{UserID: 5, Username: "dana"},
		Opponent: spawn(t, "rookie", 2),
		Send:     out.send,
		Ledger:   led,
		Tickets:  iss,
		OnEnd:    func(info EndInfo) { ended <- info },
	})
	require.NoError(t, err)
	t.Cleanup(m.Stop)

	require.NoError(t, m.Play(move.Rock))
	require.NoError(t, m.Play(move.Paper))
	assert.ErrorIs(t, m.Play(move.Scissors), game.ErrMatchOver)
	assert.ErrorIs(t, m.SetDifficulty("hard"), game.ErrMatchOver)

	assert.Equal(t, []string{codec.TypeMatchStarted, codec.TypeRoundResult, codec.TypeRoundResult, codec.TypeMatchEnd}, out.types())
	end := out.last()["payload"].(map[string]any)
	assert.Equal(t, "signed-ticket", end["ticket"])
	assert.Equal(t, false, end["abandoned"])
	assert.True(t, m.IsFinished())

	info := <-ended
	assert.Equal(t, "m-1", info.MatchID)
	assert.False(t, info.Abandoned)

	led.AssertNumberOfCalls(t, "AppendLiveEvent", 4)
	led.AssertExpectations(t)
	iss.AssertExpectations(t)
}

func TestFinalPlayAnsweredBeforeEndHookStops(t *testing.T) {
	for i := 0; i < 20; i++ {
		var m *Match
		stopped := make(chan struct{})
		var err error
		m, err = New(Config{
			ID:       "m-stop",
			Player:   Player{UserID: 3},
			Opponent: spawn(t, "rookie", 1),
			OnEnd: func(EndInfo) {
				m.Stop()
				close(stopped)
			},
		})
		require.NoError(t, err)

		require.NoError(t, m.Play(move.Rock))
		<-stopped
		assert.True(t, m.IsClosed())
		assert.ErrorIs(t, m.Play(move.Rock), ErrMatchClosed)
	}
}

func TestMatchLiveEventsDecodeAsTapeEnvelopes(t *testing.T) {
	var items []ledger.EventItem
	led := new(MockLedger)
	led.On("AppendLiveEvent", mock.Anything, uint64(1), "m-2", mock.Anything).
		Run(func(args mock.Arguments) { items = append(items, args.Get(3).(ledger.EventItem)) }).
		Return(nil)

	m, err := New(Config{ID: "m-2", Player: Player{UserID: 1}, Opponent: spawn(t, "analyst", 5), Ledger: led})
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	require.NoError(t, m.Play(move.Scissors))

	require.Len(t, items, 2)
	assert.Equal(t, uint64(2), items[1].Seq)
	require.NotNil(t, items[1].ServerTsMs)

	env, err := replay.DecodeEnvelope(items[1].EnvelopeB64)
	require.NoError(t, err)
	assert.Equal(t, codec.TypeRoundResult, env.GetFields()["type"].GetStringValue())
	assert.Equal(t, "scissors", replay.Payload(env).GetFields()["player_move"].GetStringValue())
}

func TestMatchSetDifficultyAndLeave(t *testing.T) {
	led := new(MockLedger)
	led.On("AppendLiveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	led.On("RecordMatch", mock.Anything, mock.MatchedBy(func(s ledger.MatchSummary) bool {
		return s.Abandoned && s.Rounds == 1 && s.Tier == "hard"
	})).Return(nil).Once()
	iss := new(MockIssuer)

	out := &outbox{}
	m, err := New(Config{ID: "m-3", Player: Player{UserID: 2}, Opponent: spawn(t, "rookie", 10), Send: out.send, Ledger: led, Tickets: iss})
	require.NoError(t, err)

	assert.Error(t, m.SetDifficulty("legendary"))
	require.NoError(t, m.SetDifficulty("expert"))
	assert.Equal(t, "hard", m.Snapshot().Tier.String())
	require.NoError(t, m.Play(move.Rock))

	require.NoError(t, m.Leave())
	assert.True(t, m.IsClosed())
	assert.ErrorIs(t, m.Play(move.Rock), ErrMatchClosed)

	types := out.types()
	assert.Equal(t, codec.TypeDifficultyChanged, types[1])
	assert.Equal(t, codec.TypeMatchEnd, types[len(types)-1])
	end := out.last()["payload"].(map[string]any)
	assert.Equal(t, true, end["abandoned"])
	assert.Nil(t, end["ticket"])

	led.AssertExpectations(t)
	iss.AssertNotCalled(t, "Issue", mock.Anything)
}

func TestLeaveBeforeAnyRoundSkipsRecording(t *testing.T) {
	led := new(MockLedger)
	led.On("AppendLiveEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	m, err := New(Config{ID: "m-4", Player: Player{UserID: 3}, Opponent: spawn(t, "oracle", 3), Ledger: led})
	require.NoError(t, err)
	require.NoError(t, m.Leave())

	led.AssertNotCalled(t, "RecordMatch", mock.Anything, mock.Anything)
	assert.True(t, m.IsIdleFor(0))
}

func TestNewRequiresOpponent(t *testing.T) {
	_, err := New(Config{ID: "m-5"})
	assert.Error(t, err)
}
