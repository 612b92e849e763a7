package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
	"github.com/ptcgsim/battle-server-go/internal/config"
	"github.com/ptcgsim/battle-server-go/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
	sendBuffer     = 256
)

// BattleServer serves the realtime battle protocol over websockets: one
// persistent connection per client, multiplexed by battle_id.
type BattleServer struct {
	cfg      config.WebSocketConfig
	manager  *session.Manager
	library  *card.Library
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewBattleServer wires the websocket front end to the session manager.
func NewBattleServer(cfg config.WebSocketConfig, manager *session.Manager, library *card.Library, logger *zap.Logger) *BattleServer {
	return &BattleServer{
		cfg:     cfg,
		manager: manager,
		library: library,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.AllowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving the websocket endpoint.
func (s *BattleServer) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.logger.Info("starting websocket server", zap.String("address", s.cfg.Address))
	return http.ListenAndServe(s.cfg.Address, mux)
}

func (s *BattleServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		server: s,
		joined: make(map[string]struct{}),
	}
	client.logger = s.logger.With(zap.String("client_id", client.id))
	client.logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	go client.writePump()
	go client.readPump()
}

// wsClient is one websocket connection. It implements session.Client:
// Send marshals and enqueues without blocking, and a full buffer drops
// the connection rather than stalling a session loop.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{} // closed on disconnect; gates enqueue
	server *BattleServer
	joined map[string]struct{} // battle IDs, readPump goroutine only
	logger *zap.Logger
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(msg session.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal outbound message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

func (c *wsClient) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer: closing beats blocking the producer.
		c.logger.Warn("send buffer full, dropping connection")
		c.conn.Close()
	}
}

func (c *wsClient) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(data)
}

func (c *wsClient) sendError(code, reason string) {
	c.sendJSON(session.Outbound{
		Type:  session.OutError,
		Error: &session.ErrorPayload{Code: code, Reason: reason},
	})
}

func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		// Detaching only stops future broadcasts; actions already
		// accepted by a session still resolve.
		for battleID := range c.joined {
			if sess, ok := c.server.manager.Get(battleID); ok {
				_ = sess.Leave(c.id)
			}
		}
		c.conn.Close()
		c.logger.Info("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("PROTOCOL_ERROR", "malformed message: "+err.Error())
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MsgCreateBattle:
		c.handleCreate(msg)
	case MsgJoinBattle:
		c.handleJoin(msg)
	case MsgAction:
		c.handleAction(msg)
	case MsgSandbox:
		c.handleSandbox(msg)
	case MsgCardSearch:
		c.handleCardSearch(msg)
	case MsgRequestAIAction:
		c.handleRequestAI(msg)
	case MsgPause:
		c.handlePause(msg, true)
	case MsgResume:
		c.handlePause(msg, false)
	case MsgStep:
		c.handleStep(msg)
	case MsgEndBattle:
		c.handleEnd(msg)
	default:
		c.sendError("PROTOCOL_ERROR", "unknown message type "+msg.Type)
	}
}

func (c *wsClient) handleCreate(msg ClientMessage) {
	sess, err := c.server.manager.Create(session.Mode(msg.Mode), msg.Decks)
	if err != nil {
		c.sendError("ILLEGAL_ACTION", err.Error())
		return
	}
	if err := sess.JoinCreator(c); err != nil {
		c.sendError("SESSION_NOT_FOUND", err.Error())
		return
	}
	c.joined[sess.ID] = struct{}{}
}

func (c *wsClient) handleJoin(msg ClientMessage) {
	sess, ok := c.server.manager.Get(msg.BattleID)
	if !ok {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
		return
	}
	if err := sess.Join(c); err != nil {
		c.sendError("SESSION_NOT_FOUND", err.Error())
		return
	}
	c.joined[sess.ID] = struct{}{}
}

func (c *wsClient) handleAction(msg ClientMessage) {
	act, err := decodeAction(msg.PlayerID, msg.Action)
	if err != nil {
		c.sendError("PROTOCOL_ERROR", err.Error())
		return
	}
	sess, ok := c.server.manager.Get(msg.BattleID)
	if !ok {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
		return
	}
	if err := sess.SubmitAction(c.id, msg.ActionID, act); err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			c.sendError("SESSION_NOT_FOUND", "battle was torn down")
			return
		}
		c.sendError("INTERNAL", err.Error())
	}
}

func (c *wsClient) handleSandbox(msg ClientMessage) {
	if msg.Sandbox == nil {
		c.sendError("PROTOCOL_ERROR", "missing sandbox payload")
		return
	}
	sess, ok := c.server.manager.Get(msg.BattleID)
	if !ok {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
		return
	}
	if err := sess.SubmitSandbox(c.id, *msg.Sandbox); err != nil {
		c.sendError("SESSION_NOT_FOUND", "battle was torn down")
	}
}

func (c *wsClient) handleCardSearch(msg ClientMessage) {
	hits := c.server.library.SearchByName(msg.Query, msg.Limit)
	resp := SearchResponse{Type: "card_search_result", Query: msg.Query}
	for _, hit := range hits {
		resp.Cards = append(resp.Cards, CardResult{
			ID:   hit.ID,
			Name: hit.Name,
			Kind: string(hit.Kind),
			HP:   hit.HP,
		})
	}
	c.sendJSON(resp)
}

// handleRequestAI lets a driver or spectator re-request the ai_turn_needed
// signal, e.g. after the driver reconnects mid-battle.
func (c *wsClient) handleRequestAI(msg ClientMessage) {
	sess, ok := c.server.manager.Get(msg.BattleID)
	if !ok {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
		return
	}
	if err := sess.RequestAISignal(); err != nil {
		c.sendError("SESSION_NOT_FOUND", "battle was torn down")
	}
}

// handlePause suspends or resumes an auto-sim battle's driver
// signaling. Sessions in other modes reject it.
func (c *wsClient) handlePause(msg ClientMessage, paused bool) {
	sess, ok := c.server.manager.Get(msg.BattleID)
	if !ok {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
		return
	}
	if err := sess.SetPaused(c.id, paused); err != nil {
		c.sendError("SESSION_NOT_FOUND", "battle was torn down")
	}
}

// handleStep advances a paused auto-sim by a single driver signal.
func (c *wsClient) handleStep(msg ClientMessage) {
	sess, ok := c.server.manager.Get(msg.BattleID)
	if !ok {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
		return
	}
	if err := sess.Step(c.id); err != nil {
		c.sendError("SESSION_NOT_FOUND", "battle was torn down")
	}
}

func (c *wsClient) handleEnd(msg ClientMessage) {
	if !c.server.manager.End(msg.BattleID) {
		c.sendError("SESSION_NOT_FOUND", "unknown battle "+msg.BattleID)
	}
}
