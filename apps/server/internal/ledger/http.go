package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"rps-lite/apps/server/internal/auth"
	"rps-lite/apps/server/internal/ticket"
)

// TicketVerifier checks a result ticket issued at the end of a match.
type TicketVerifier interface {
	Verify(raw string) (ticket.Claims, error)
}

type HTTPHandler struct {
	auth    auth.Service
	ledger  Service
	tickets TicketVerifier
}

type submitRequest struct {
	Ticket string `json:"ticket"`
}

type submitResponse struct {
	Rank  int              `json:"rank"`
	Entry LeaderboardEntry `json:"entry"`
}

func NewHTTPHandler(authService auth.Service, ledgerService Service, tickets TicketVerifier) *HTTPHandler {
	return &HTTPHandler{
		auth:    authService,
		ledger:  ledgerService,
		tickets: tickets,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/me", h.handleStats)
	mux.HandleFunc("/api/matches", h.handleRecent)
	mux.HandleFunc("/api/matches/", h.handleMatchEvents)
	mux.HandleFunc("/api/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/api/leaderboard/submit", h.handleSubmit)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	account, ok := auth.Authenticate(r, h.auth)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	stats, err := h.ledger.Stats(r.Context(), account.ID)
	if err != nil {
		log.Warnf("[Ledger] stats query failed: user=%d err=%v", account.ID, err)
		auth.WriteError(w, http.StatusInternalServerError, "query stats failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	account, ok := auth.Authenticate(r, h.auth)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	items, err := h.ledger.RecentMatches(r.Context(), account.ID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		log.Warnf("[Ledger] recent matches query failed: user=%d err=%v", account.ID, err)
		auth.WriteError(w, http.StatusInternalServerError, "query recent matches failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleMatchEvents serves /api/matches/{matchID}/events.
func (h *HTTPHandler) handleMatchEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	account, ok := auth.Authenticate(r, h.auth)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/matches/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "events" {
		auth.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	matchID := parts[0]

	events, err := h.ledger.MatchEvents(r.Context(), account.ID, matchID)
	if errors.Is(err, ErrNotFound) {
		auth.WriteError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		log.Warnf("[Ledger] match events query failed: user=%d match=%s err=%v", account.ID, matchID, err)
		auth.WriteError(w, http.StatusInternalServerError, "query match events failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{
		"match_id": matchID,
		"events":   events,
	})
}

func (h *HTTPHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := h.ledger.Leaderboard(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		log.Warnf("[Ledger] leaderboard query failed: %v", err)
		auth.WriteError(w, http.StatusInternalServerError, "query leaderboard failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	account, ok := auth.Authenticate(r, h.auth)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Ticket) == "" {
		auth.WriteError(w, http.StatusBadRequest, "ticket required")
		return
	}
	claims, err := h.tickets.Verify(req.Ticket)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid ticket")
		return
	}
	if claims.UserID != account.ID {
		auth.WriteError(w, http.StatusForbidden, "ticket belongs to another player")
		return
	}

	entry := LeaderboardEntry{
		UserID:  account.ID,
		Name:    account.Username,
		MatchID: claims.MatchID,
		Score:   claims.PlayerScore,
		Rounds:  claims.Rounds,
		Tier:    claims.Tier,
	}
	rank, err := h.ledger.SubmitScore(r.Context(), entry)
	if errors.Is(err, ErrAlreadySubmitted) {
		auth.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Warnf("[Ledger] submit score failed: user=%d match=%s err=%v", account.ID, claims.MatchID, err)
		auth.WriteError(w, http.StatusInternalServerError, "submit score failed")
		return
	}
	entry.Rank = rank
	log.Infof("[Ledger] score submitted: user=%s match=%s score=%d rank=%d", account.Username, claims.MatchID, entry.Score, rank)
	auth.WriteJSON(w, http.StatusOK, submitResponse{Rank: rank, Entry: entry})
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
