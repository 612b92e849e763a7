package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
	"github.com/ptcgsim/battle-server-go/internal/game"
)

// ErrSessionClosed is returned for any submission against a torn-down
// session. In-flight actions are rejected, never silently dropped.
var ErrSessionClosed = errors.New("session closed")

const inboundBuffer = 64

// SandboxOp is one unchecked sandbox manipulation.
type SandboxOp struct {
	Kind       string          `json:"kind"` // place_card, set_hp, apply_status, clear_status, attach_energy, remove_pokemon
	Player     int             `json:"player"`
	Slot       game.Slot       `json:"slot"`
	CardID     string          `json:"card_id,omitempty"`
	ToHand     bool            `json:"to_hand,omitempty"`
	HP         int             `json:"hp,omitempty"`
	Status     game.StatusKind `json:"status,omitempty"`
	Turns      int             `json:"turns,omitempty"`
	EnergyType card.EnergyType `json:"energy_type,omitempty"`
	Count      int             `json:"count,omitempty"`
}

type command interface{ isCommand() }

type joinCmd struct {
	client  Client
	creator bool
}
type leaveCmd struct{ clientID string }
type actionCmd struct {
	clientID string
	actionID string
	action   game.Action
}
type sandboxCmd struct {
	clientID string
	op       SandboxOp
}
type aiTimeoutCmd struct{ turn int }
type requestAICmd struct{}
type pauseCmd struct {
	clientID string
	paused   bool
}
type stepCmd struct{ clientID string }

func (joinCmd) isCommand()      {}
func (leaveCmd) isCommand()     {}
func (actionCmd) isCommand()    {}
func (sandboxCmd) isCommand()   {}
func (aiTimeoutCmd) isCommand() {}
func (requestAICmd) isCommand() {}
func (pauseCmd) isCommand()     {}
func (stepCmd) isCommand()      {}

// Session owns one battle: its authoritative game state, the admitted
// clients, and the single goroutine that serializes every mutation.
// No two resolver calls for the same battle ever run concurrently.
type Session struct {
	ID        string
	Mode      Mode
	CreatedAt time.Time

	state    *game.GameState
	resolver *game.Resolver
	sandbox  *game.Sandbox
	library  *card.Library
	replay   *game.Replay
	logger   *zap.Logger

	inbound chan command
	quit    chan struct{}

	mu       sync.Mutex
	closed   bool
	faulted  bool
	finished time.Time // zero until the battle reaches its terminal phase

	clients   map[string]Client
	processed map[string]struct{} // client-assigned action IDs already applied
	seq       uint64
	paused    bool                // loop goroutine only; suppresses driver signaling

	aiTimeout time.Duration
	aiTimer   *time.Timer

	onFinished func(s *Session, winner *int, tie bool)
}

func newSession(id string, mode Mode, state *game.GameState, resolver *game.Resolver,
	sandbox *game.Sandbox, library *card.Library, aiTimeout time.Duration, logger *zap.Logger) *Session {
	return &Session{
		ID:        id,
		Mode:      mode,
		CreatedAt: time.Now(),
		state:     state,
		resolver:  resolver,
		sandbox:   sandbox,
		library:   library,
		replay:    game.NewReplay(id),
		logger:    logger.With(zap.String("battle_id", id)),
		inbound:   make(chan command, inboundBuffer),
		quit:      make(chan struct{}),
		clients:   make(map[string]Client),
		processed: make(map[string]struct{}),
		aiTimeout: aiTimeout,
	}
}

// Join admits a client. The client receives a full state snapshot before
// any later incremental broadcast, through the same ordered loop.
func (s *Session) Join(client Client) error {
	return s.submit(joinCmd{client: client})
}

// JoinCreator admits the creating client; its snapshot event is typed
// battle_created instead of battle_joined.
func (s *Session) JoinCreator(client Client) error {
	return s.submit(joinCmd{client: client, creator: true})
}

// Leave detaches a client. Pending actions it submitted still resolve.
func (s *Session) Leave(clientID string) error {
	return s.submit(leaveCmd{clientID: clientID})
}

// SubmitAction queues an action for serialized processing. actionID is
// the client-assigned identifier used for duplicate suppression.
func (s *Session) SubmitAction(clientID, actionID string, act game.Action) error {
	return s.submit(actionCmd{clientID: clientID, actionID: actionID, action: act})
}

// SubmitSandbox queues an unchecked sandbox manipulation. Rejected at
// processing time unless the session was created in sandbox mode.
func (s *Session) SubmitSandbox(clientID string, op SandboxOp) error {
	return s.submit(sandboxCmd{clientID: clientID, op: op})
}

// RequestAISignal re-emits ai_turn_needed if an AI-controlled player is
// to act, for drivers that reconnect mid-battle.
func (s *Session) RequestAISignal() error {
	return s.submit(requestAICmd{})
}

// SetPaused suspends or resumes automatic driver signaling. Only
// sandbox and ai-vs-ai sessions accept it.
func (s *Session) SetPaused(clientID string, paused bool) error {
	return s.submit(pauseCmd{clientID: clientID, paused: paused})
}

// Step emits a single ai_turn_needed signal while the session is
// paused, advancing a halted auto-sim by one action.
func (s *Session) Step(clientID string) error {
	return s.submit(stepCmd{clientID: clientID})
}

func (s *Session) submit(cmd command) error {
	select {
	case <-s.quit:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbound <- cmd:
		return nil
	case <-s.quit:
		return ErrSessionClosed
	}
}

// Close tears the session down. Queued commands are rejected with an
// error event rather than dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.quit)
}

// Finished reports when the battle ended; ok is false while in progress.
func (s *Session) Finished() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished, !s.finished.IsZero()
}

// Replay returns the battle's recorded mutation history. The replay is
// internally synchronized and safe to read at any time.
func (s *Session) Replay() *game.Replay {
	return s.replay
}

// Faulted reports whether the session was terminated by an invariant
// violation.
func (s *Session) Faulted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faulted
}

// run is the session's single-writer loop. All state access after
// construction happens here.
func (s *Session) run() {
	defer s.drain()
	for {
		select {
		case cmd := <-s.inbound:
			s.handle(cmd)
		case <-s.quit:
			return
		}
	}
}

// drain rejects whatever was queued when the session was torn down.
func (s *Session) drain() {
	for {
		select {
		case cmd := <-s.inbound:
			switch c := cmd.(type) {
			case actionCmd:
				s.sendTo(c.clientID, Outbound{
					Type:     OutError,
					ActionID: c.actionID,
					Error:    &ErrorPayload{Code: "SESSION_CLOSED", Reason: "battle was torn down"},
				})
			case sandboxCmd:
				s.sendTo(c.clientID, Outbound{
					Type:  OutError,
					Error: &ErrorPayload{Code: "SESSION_CLOSED", Reason: "battle was torn down"},
				})
			}
		default:
			return
		}
	}
}

func (s *Session) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		s.clients[c.client.ID()] = c.client
		s.logger.Info("client joined", zap.String("client_id", c.client.ID()))
		msgType := OutBattleJoined
		if c.creator {
			msgType = OutBattleCreated
		}
		c.client.Send(s.stamp(Outbound{
			Type:  msgType,
			Mode:  s.Mode,
			State: s.state.Clone(),
		}))

	case leaveCmd:
		delete(s.clients, c.clientID)
		s.logger.Info("client left", zap.String("client_id", c.clientID))

	case actionCmd:
		s.handleAction(c)

	case sandboxCmd:
		s.handleSandbox(c)

	case aiTimeoutCmd:
		s.handleAITimeout(c.turn)

	case requestAICmd:
		if !s.paused {
			s.signalAITurnIfNeeded()
		}

	case pauseCmd:
		s.handlePause(c)

	case stepCmd:
		s.handleStep(c)
	}
}

func (s *Session) handlePause(c pauseCmd) {
	if !s.Mode.Steppable() {
		s.sendTo(c.clientID, Outbound{
			Type:  OutError,
			Error: &ErrorPayload{Code: "ILLEGAL_ACTION", Reason: "pause requires a sandbox or ai_vs_ai session"},
		})
		return
	}
	if s.paused == c.paused {
		return
	}
	s.paused = c.paused
	s.logger.Info("simulation pause toggled", zap.Bool("paused", s.paused))
	s.broadcast(Outbound{Type: OutSimPaused, Paused: s.paused})
	if s.paused {
		s.cancelAITimer()
		return
	}
	s.signalAITurnIfNeeded()
}

func (s *Session) handleStep(c stepCmd) {
	if !s.Mode.Steppable() {
		s.sendTo(c.clientID, Outbound{
			Type:  OutError,
			Error: &ErrorPayload{Code: "ILLEGAL_ACTION", Reason: "step requires a sandbox or ai_vs_ai session"},
		})
		return
	}
	if !s.paused {
		s.sendTo(c.clientID, Outbound{
			Type:  OutError,
			Error: &ErrorPayload{Code: "ILLEGAL_ACTION", Reason: "step requires a paused battle"},
		})
		return
	}
	s.signalAITurnIfNeeded()
}

func (s *Session) handleAction(c actionCmd) {
	if c.actionID != "" {
		if _, dup := s.processed[c.actionID]; dup {
			s.sendTo(c.clientID, Outbound{
				Type:     OutError,
				ActionID: c.actionID,
				Error:    &ErrorPayload{Code: "DUPLICATE_ACTION", Reason: "action id already processed"},
			})
			return
		}
	}

	next, events, err := s.resolver.Apply(s.state, c.action)
	if err != nil {
		s.rejectAction(c, err)
		return
	}

	if c.actionID != "" {
		s.processed[c.actionID] = struct{}{}
	}
	s.state = next
	s.replay.Record(c.action, events, s.state)
	s.cancelAITimer()

	s.sendTo(c.clientID, Outbound{
		Type:     OutActionResult,
		ActionID: c.actionID,
		PlayerID: c.action.Actor(),
		Events:   events,
	})
	s.broadcast(Outbound{
		Type:   OutStateUpdate,
		State:  s.state.Clone(),
		Events: events,
	})

	s.afterMutation()
}

func (s *Session) rejectAction(c actionCmd, err error) {
	if errors.Is(err, game.ErrInvariantViolation) {
		// The state can no longer be trusted; terminating beats letting
		// client views diverge.
		s.logger.Error("invariant violation, terminating session", zap.Error(err))
		s.mu.Lock()
		s.faulted = true
		s.mu.Unlock()
		s.broadcast(Outbound{
			Type:  OutError,
			Error: &ErrorPayload{Code: "INTERNAL_INVARIANT_VIOLATION", Reason: err.Error()},
		})
		s.Close()
		return
	}

	payload := &ErrorPayload{Code: "ILLEGAL_ACTION", Reason: err.Error()}
	var actionErr *game.ActionError
	if errors.As(err, &actionErr) {
		payload.Code = string(actionErr.Code)
		payload.Reason = actionErr.Reason
	}
	s.sendTo(c.clientID, Outbound{Type: OutError, ActionID: c.actionID, Error: payload})
}

func (s *Session) handleSandbox(c sandboxCmd) {
	if s.Mode != ModeSandbox {
		s.sendTo(c.clientID, Outbound{
			Type:  OutError,
			Error: &ErrorPayload{Code: "ILLEGAL_ACTION", Reason: "sandbox operations require a sandbox session"},
		})
		return
	}

	events, err := s.applySandbox(c.op)
	if err != nil {
		s.rejectAction(actionCmd{clientID: c.clientID}, err)
		return
	}
	if err := s.state.CheckInvariants(); err != nil {
		s.rejectAction(actionCmd{clientID: c.clientID}, err)
		return
	}
	s.replay.RecordSandbox(c.op.Player, events, s.state)

	s.broadcast(Outbound{
		Type:   OutStateUpdate,
		State:  s.state.Clone(),
		Events: events,
	})
	s.afterMutation()
}

func (s *Session) applySandbox(op SandboxOp) ([]game.Event, error) {
	switch op.Kind {
	case "place_card":
		c, ok := s.library.Get(op.CardID)
		if !ok {
			return nil, fmt.Errorf("unknown card id %q", op.CardID)
		}
		return s.sandbox.PlaceCard(s.state, op.Player, c, op.Slot, op.ToHand)
	case "set_hp":
		return s.sandbox.SetHP(s.state, op.Player, op.Slot, op.HP)
	case "apply_status":
		return s.sandbox.ApplyStatus(s.state, op.Player, op.Slot, op.Status, op.Turns)
	case "clear_status":
		return s.sandbox.ClearStatus(s.state, op.Player, op.Slot, op.Status)
	case "attach_energy":
		return s.sandbox.AttachEnergy(s.state, op.Player, op.Slot, op.EnergyType, op.Count)
	case "remove_pokemon":
		return s.sandbox.RemoveEntity(s.state, op.Player, op.Slot)
	default:
		return nil, fmt.Errorf("unknown sandbox operation %q", op.Kind)
	}
}

// afterMutation runs the shared post-resolution bookkeeping: terminal
// detection and AI hand-off signaling.
func (s *Session) afterMutation() {
	if s.state.Finished() {
		s.mu.Lock()
		alreadyEnded := !s.finished.IsZero()
		if !alreadyEnded {
			s.finished = time.Now()
		}
		s.mu.Unlock()
		if !alreadyEnded {
			s.broadcast(Outbound{
				Type:   OutBattleEnded,
				Winner: s.state.Winner,
				IsTie:  s.state.IsTie,
			})
			if s.onFinished != nil {
				s.onFinished(s, s.state.Winner, s.state.IsTie)
			}
		}
		return
	}

	if !s.paused {
		s.signalAITurnIfNeeded()
	}
}

// signalAITurnIfNeeded emits ai_turn_needed when an AI-controlled
// player is to act in a running battle past setup.
func (s *Session) signalAITurnIfNeeded() {
	if !s.state.Finished() && s.state.Phase != game.PhaseSetup &&
		s.Mode.AIControls(s.state.CurrentPlayer) {
		s.signalAITurn()
	}
}

// signalAITurn tells the external AI driver to act and arms the stall
// timeout. The driver answers through the normal action channel.
func (s *Session) signalAITurn() {
	s.broadcast(Outbound{
		Type:     OutAITurnNeeded,
		PlayerID: s.state.CurrentPlayer,
	})
	if s.aiTimeout <= 0 {
		return
	}
	s.cancelAITimer()
	turn := s.state.TurnNumber
	s.aiTimer = time.AfterFunc(s.aiTimeout, func() {
		// Best effort: a closed or busy session just misses the nudge.
		select {
		case s.inbound <- aiTimeoutCmd{turn: turn}:
		case <-s.quit:
		default:
		}
	})
}

// handleAITimeout forfeits a stalled AI turn so one slow driver cannot
// wedge the battle. Stale timeouts for already-finished turns are ignored.
func (s *Session) handleAITimeout(turn int) {
	if s.state.Finished() || s.state.TurnNumber != turn {
		return
	}
	if !s.Mode.AIControls(s.state.CurrentPlayer) {
		return
	}
	s.logger.Warn("AI driver stalled, forfeiting turn",
		zap.Int("player", s.state.CurrentPlayer),
		zap.Int("turn", turn),
	)
	s.handleAction(actionCmd{
		clientID: "",
		action:   game.PassTurn{Player: s.state.CurrentPlayer},
	})
}

func (s *Session) cancelAITimer() {
	if s.aiTimer != nil {
		s.aiTimer.Stop()
		s.aiTimer = nil
	}
}

func (s *Session) stamp(msg Outbound) Outbound {
	s.seq++
	msg.Seq = s.seq
	msg.BattleID = s.ID
	return msg
}

// broadcast delivers an event to every admitted client, in order.
func (s *Session) broadcast(msg Outbound) {
	msg = s.stamp(msg)
	for _, client := range s.clients {
		client.Send(msg)
	}
}

// sendTo delivers an event to one client; a detached client is a no-op.
func (s *Session) sendTo(clientID string, msg Outbound) {
	if clientID == "" {
		return
	}
	client, ok := s.clients[clientID]
	if !ok {
		return
	}
	client.Send(s.stamp(msg))
}

// Snapshot returns a copy of the current state for read-only use. It
// routes through the session loop to preserve the single-writer rule.
func (s *Session) Snapshot(ctx context.Context) (*game.GameState, error) {
	type snapshotClient struct {
		id string
		ch chan Outbound
	}
	sc := &snapshotClient{id: "snapshot-" + fmt.Sprint(time.Now().UnixNano()), ch: make(chan Outbound, 1)}
	if err := s.Join(clientFunc{id: sc.id, send: func(msg Outbound) {
		if msg.Type == OutBattleJoined {
			select {
			case sc.ch <- msg:
			default:
			}
		}
	}}); err != nil {
		return nil, err
	}
	defer s.Leave(sc.id) //nolint:errcheck // best effort on a closing session

	select {
	case msg := <-sc.ch:
		return msg.State, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.quit:
		return nil, ErrSessionClosed
	}
}

// clientFunc adapts a function to the Client interface.
type clientFunc struct {
	id   string
	send func(Outbound)
}

func (c clientFunc) ID() string        { return c.id }
func (c clientFunc) Send(msg Outbound) { c.send(msg) }
