package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rps-lite/apps/server/internal/auth"
	"rps-lite/apps/server/internal/codec"
	"rps-lite/apps/server/internal/ledger"
	"rps-lite/apps/server/internal/lobby"
	"rps-lite/game/opponent"
)

type harness struct {
	server *httptest.Server
	auth   auth.Service
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	authService := auth.NewMemoryService()
	_, token, err := authService.Guest(context.Background())
	require.NoError(t, err)

	registry := opponent.NewRegistry()
	require.NoError(t, registry.LoadDefaults())
	lby := lobby.New(opponent.NewManager(registry, 3), ledger.NewMemoryService(), nil)
	t.Cleanup(lby.Shutdown)

	g := New(authService, lby, nil)
	srv := httptest.NewServer(http.HandlerFunc(g.HandleWebSocket))
	t.Cleanup(srv.Close)
	return &harness{server: srv, auth: authService, token: token}
}

func (h *harness) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRejectsMissingToken(t *testing.T) {
	h := newHarness(t)
	_, resp, err := h.dial(t, "bogus")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPlayMatchOverWebSocket(t *testing.T) {
	h := newHarness(t)
	conn, _, err := h.dial(t, h.token)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    codec.TypeStartMatch,
		"payload": map[string]any{"persona": "rookie", "rounds": 1},
	}))
	started := readEnvelope(t, conn)
	assert.Equal(t, codec.TypeMatchStarted, started["type"])
	matchID, _ := started["match_id"].(string)
	require.NotEmpty(t, matchID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     codec.TypePlay,
		"match_id": matchID,
		"payload":  map[string]any{"fingers": 5},
	}))
	round := readEnvelope(t, conn)
	assert.Equal(t, codec.TypeRoundResult, round["type"])
	assert.Equal(t, "paper", round["payload"].(map[string]any)["player_move"])

	end := readEnvelope(t, conn)
	assert.Equal(t, codec.TypeMatchEnd, end["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    codec.TypePlay,
		"payload": map[string]any{"move": "rock"},
	}))
	over := readEnvelope(t, conn)
	assert.Equal(t, codec.TypeError, over["type"])
	// The lobby releases a finished match right after its last round.
	assert.Contains(t, []any{codec.CodeMatchOver, codec.CodeNoMatch}, over["payload"].(map[string]any)["code"])
}

func TestPlayRejectsOtherUsersMatch(t *testing.T) {
	h := newHarness(t)
	owner, _, err := h.dial(t, h.token)
	require.NoError(t, err)
	defer owner.Close()

	require.NoError(t, owner.WriteJSON(map[string]any{
		"type":    codec.TypeStartMatch,
		"payload": map[string]any{"persona": "rookie", "rounds": 3},
	}))
	started := readEnvelope(t, owner)
	matchID, _ := started["match_id"].(string)
	require.NotEmpty(t, matchID)

	_, otherToken, err := h.auth.Guest(context.Background())
	require.NoError(t, err)
	intruder, _, err := h.dial(t, otherToken)
	require.NoError(t, err)
	defer intruder.Close()

	require.NoError(t, intruder.WriteJSON(map[string]any{
		"type":     codec.TypePlay,
		"match_id": matchID,
		"payload":  map[string]any{"move": "rock"},
	}))
	msg := readEnvelope(t, intruder)
	assert.Equal(t, codec.TypeError, msg["type"])
	assert.Equal(t, codec.CodeNoMatch, msg["payload"].(map[string]any)["code"])

	require.NoError(t, owner.WriteJSON(map[string]any{
		"type":     codec.TypePlay,
		"match_id": matchID,
		"payload":  map[string]any{"move": "rock"},
	}))
	round := readEnvelope(t, owner)
	assert.Equal(t, codec.TypeRoundResult, round["type"])
}

func TestBadMessagesGetErrors(t *testing.T) {
	h := newHarness(t)
	conn, _, err := h.dial(t, h.token)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	msg := readEnvelope(t, conn)
	assert.Equal(t, codec.CodeBadRequest, msg["payload"].(map[string]any)["code"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": codec.TypePlay, "payload": map[string]any{"move": "rock"}}))
	msg = readEnvelope(t, conn)
	assert.Equal(t, codec.CodeNoMatch, msg["payload"].(map[string]any)["code"])
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://rps.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
	req.Header.Set("Origin", "https://rps.example")
	assert.True(t, check(req))
	assert.True(t, originChecker(nil)(req))
}
