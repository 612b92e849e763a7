package session

import "github.com/ptcgsim/battle-server-go/internal/game"

// Mode is the player-control mode requested at battle creation.
type Mode string

const (
	ModeHumanVsHuman Mode = "human_vs_human"
	ModeHumanVsAI    Mode = "human_vs_ai"
	ModeAIVsAI       Mode = "ai_vs_ai"
	ModeSandbox      Mode = "sandbox"
)

// Valid reports whether the mode is one of the defined control modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeHumanVsHuman, ModeHumanVsAI, ModeAIVsAI, ModeSandbox:
		return true
	}
	return false
}

// AIControls reports whether the given player index is driven by the
// external AI driver under this mode. In human-vs-ai the AI is always
// player 1.
func (m Mode) AIControls(player int) bool {
	switch m {
	case ModeAIVsAI:
		return true
	case ModeHumanVsAI:
		return player == 1
	}
	return false
}

// Steppable reports whether the mode's automatic driver signaling can
// be paused and single-stepped.
func (m Mode) Steppable() bool {
	return m == ModeAIVsAI || m == ModeSandbox
}

// OutboundType identifies a server-to-client event.
type OutboundType string

const (
	OutBattleCreated OutboundType = "battle_created"
	OutBattleJoined  OutboundType = "battle_joined"
	OutStateUpdate   OutboundType = "game_state_update"
	OutActionResult  OutboundType = "battle_action_result"
	OutAITurnNeeded  OutboundType = "ai_turn_needed"
	OutSimPaused     OutboundType = "sim_paused"
	OutBattleEnded   OutboundType = "battle_ended"
	OutError         OutboundType = "error"
)

// ErrorPayload carries a typed failure to a client.
type ErrorPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Outbound is one ordered server-to-client event for a battle. State,
// when present, is a snapshot the receiver owns: the session never
// mutates it after sending.
type Outbound struct {
	Type     OutboundType    `json:"type"`
	BattleID string          `json:"battle_id"`
	Seq      uint64          `json:"seq"`
	Mode     Mode            `json:"mode,omitempty"`
	PlayerID int             `json:"player_id,omitempty"`
	ActionID string          `json:"action_id,omitempty"`
	State    *game.GameState `json:"state,omitempty"`
	Events   []game.Event    `json:"events,omitempty"`
	Winner   *int            `json:"winner,omitempty"`
	IsTie    bool            `json:"is_tie,omitempty"`
	Paused   bool            `json:"paused,omitempty"`
	Error    *ErrorPayload   `json:"error,omitempty"`
}

// Client is a transport-side handle admitted to a battle. Send must not
// block: transports buffer and drop the connection when the buffer
// overflows rather than stalling the session loop.
type Client interface {
	ID() string
	Send(msg Outbound)
}
