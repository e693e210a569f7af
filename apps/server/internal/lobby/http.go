package lobby

import (
	"net/http"

	"rps-lite/apps/server/internal/auth"
)

type personaView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline,omitempty"`
	Tier    string `json:"tier"`
}

type HTTPHandler struct {
	lobby *Lobby
}

func NewHTTPHandler(l *Lobby) *HTTPHandler {
	return &HTTPHandler{lobby: l}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/personas", h.handlePersonas)
}

func (h *HTTPHandler) handlePersonas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	personas := h.lobby.Personas()
	out := make([]personaView, 0, len(personas))
	for _, p := range personas {
		tier, _ := p.Settings()
		out = append(out, personaView{ID: p.ID, Name: p.Name, Tagline: p.Tagline, Tier: tier.String()})
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{"personas": out})
}
