package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"rps-lite/apps/server/internal/auth"
	"rps-lite/apps/server/internal/codec"
	"rps-lite/apps/server/internal/lobby"
	"rps-lite/apps/server/internal/match"
	"rps-lite/game"
)

const (
	readLimit    = 8192
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Connection is one authenticated websocket client.
type Connection struct {
	ID       string
	Account  auth.Account
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time
}

// Gateway manages websocket connections and routes client messages to the lobby.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	userConns   map[uint64]*Connection
	nextConnID  uint64

	auth     auth.Service
	lobby    *lobby.Lobby
	upgrader websocket.Upgrader
}

// New creates a gateway. An empty allowedOrigins accepts any origin.
func New(authService auth.Service, lby *lobby.Lobby, allowedOrigins []string) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		userConns:   make(map[uint64]*Connection),
		auth:        authService,
		lobby:       lby,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// HandleWebSocket authenticates the session token (query "token" or bearer header)
// and upgrades the connection.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	account, ok := g.auth.ResolveSession(r.Context(), token)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:       fmt.Sprintf("conn_%d", g.nextConnID),
		Account:  account,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
	}
	// A newer connection takes over the user's stream.
	if old := g.userConns[account.ID]; old != nil {
		_ = old.Conn.Close()
	}
	g.connections[c.ID] = c
	g.userConns[account.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Infof("[Gateway] Client connected: %s (user=%s), total: %d", c.ID, account.Username, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.DecodeClient(data)
	if err != nil {
		c.sendError("", codec.CodeBadRequest, err.Error())
		return
	}
	log.Debugf("[Gateway] Received from user %d: type=%s match=%s", c.Account.ID, env.Type, env.MatchID)

	switch env.Type {
	case codec.TypeStartMatch:
		c.handleStartMatch(env)
	case codec.TypePlay:
		c.handlePlay(env)
	case codec.TypeSetDifficulty:
		c.handleSetDifficulty(env)
	case codec.TypeLeave:
		if err := c.Gateway.lobby.Leave(c.Account.ID); err != nil {
			c.sendMatchError(env.MatchID, err)
		}
	}
}

func (c *Connection) handleStartMatch(env codec.ClientEnvelope) {
	var req codec.StartMatchRequest
	if err := env.DecodePayload(&req); err != nil {
		c.sendError("", codec.CodeBadRequest, err.Error())
		return
	}
	player := match.Player{UserID: c.Account.ID, Username: c.Account.Username}
	if _, err := c.Gateway.lobby.StartMatch(player, req, c.Gateway.sendToUser(c.Account.ID)); err != nil {
		c.sendError("", codec.CodeBadRequest, err.Error())
	}
}

func (c *Connection) handlePlay(env codec.ClientEnvelope) {
	m := c.currentMatch(env.MatchID)
	if m == nil {
		return
	}
	var req codec.PlayRequest
	if err := env.DecodePayload(&req); err != nil {
		c.sendError(m.ID, codec.CodeBadRequest, err.Error())
		return
	}
	mv, err := req.ResolveMove()
	if err != nil {
		c.sendError(m.ID, codec.CodeInvalidMove, err.Error())
		return
	}
	if err := m.Play(mv); err != nil {
		c.sendMatchError(m.ID, err)
	}
}

func (c *Connection) handleSetDifficulty(env codec.ClientEnvelope) {
	m := c.currentMatch(env.MatchID)
	if m == nil {
		return
	}
	var req codec.SetDifficultyRequest
	if err := env.DecodePayload(&req); err != nil {
		c.sendError(m.ID, codec.CodeBadRequest, err.Error())
		return
	}
	if err := m.SetDifficulty(req.Tier); err != nil {
		c.sendMatchError(m.ID, err)
	}
}

// currentMatch returns the user's live match, reporting an error to the client when
// there is none or the client names a different one.
func (c *Connection) currentMatch(matchID string) *match.Match {
	var m *match.Match
	if matchID != "" {
		m = c.Gateway.lobby.GetMatch(matchID)
	} else {
		m = c.Gateway.lobby.MatchFor(c.Account.ID)
	}
	if m == nil || m.UserID() != c.Account.ID {
		c.sendError(matchID, codec.CodeNoMatch, "no active match")
		return nil
	}
	return m
}

func (c *Connection) sendMatchError(matchID string, err error) {
	switch {
	case errors.Is(err, game.ErrMatchOver):
		c.sendError(matchID, codec.CodeMatchOver, err.Error())
	case errors.Is(err, game.ErrInvalidMove):
		c.sendError(matchID, codec.CodeInvalidMove, err.Error())
	case errors.Is(err, match.ErrMatchClosed), errors.Is(err, lobby.ErrNoMatch):
		c.sendError(matchID, codec.CodeNoMatch, err.Error())
	default:
		c.sendError(matchID, codec.CodeBadRequest, err.Error())
	}
}

func (c *Connection) sendError(matchID, code, msg string) {
	data, err := codec.Encode(codec.ErrorEnvelope(matchID, code, msg))
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.connections, c.ID)
	if g.userConns[c.Account.ID] == c {
		delete(g.userConns, c.Account.ID)
	}
	log.Infof("[Gateway] Client disconnected: %s, total: %d", c.ID, len(g.connections))
}

// sendToUser returns a sink delivering to whichever connection the user currently
// has, so a reconnect keeps receiving its match.
func (g *Gateway) sendToUser(userID uint64) func(data []byte) {
	return func(data []byte) {
		g.mu.RLock()
		c := g.userConns[userID]
		g.mu.RUnlock()
		if c == nil {
			return
		}
		select {
		case c.Send <- data:
		default:
			log.Warnf("[Gateway] Dropped message for user %d: send buffer full", userID)
		}
	}
}

// Connections returns the number of open connections.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}
