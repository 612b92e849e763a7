package server

import (
	"fmt"

	"github.com/ptcgsim/battle-server-go/internal/card"
	"github.com/ptcgsim/battle-server-go/internal/game"
	"github.com/ptcgsim/battle-server-go/internal/session"
)

// Client-to-server message types.
const (
	MsgCreateBattle    = "create_battle"
	MsgJoinBattle      = "join_battle"
	MsgAction          = "action"
	MsgSandbox         = "sandbox"
	MsgCardSearch      = "card_search"
	MsgRequestAIAction = "request_ai_action"
	MsgPause           = "pause"
	MsgResume          = "resume"
	MsgStep            = "step"
	MsgEndBattle       = "end_battle"
)

// ClientMessage is the envelope for all client-to-server traffic on the
// websocket. Exactly one payload section applies per Type.
type ClientMessage struct {
	Type     string `json:"type"`
	BattleID string `json:"battle_id,omitempty"`

	// For create_battle.
	Mode  string    `json:"mode,omitempty"`
	Decks [2]string `json:"decks,omitempty"`

	// For action: the claimed player and a client-assigned id used for
	// duplicate suppression on retries.
	PlayerID int            `json:"player_id,omitempty"`
	ActionID string         `json:"action_id,omitempty"`
	Action   *ActionPayload `json:"action,omitempty"`

	// For sandbox.
	Sandbox *session.SandboxOp `json:"sandbox,omitempty"`

	// For card_search.
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ActionPayload is the typed wire form of a game action. It is decoded
// into the engine's tagged Action variants before touching any state, so
// a malformed payload is rejected at the connection boundary.
type ActionPayload struct {
	Type        string `json:"type"`
	HandIndex   int    `json:"hand_index,omitempty"`
	Slot        int    `json:"slot,omitempty"`
	AttackName  string `json:"attack_name,omitempty"`
	AbilityName string `json:"ability_name,omitempty"`
	EnergyType  string `json:"energy_type,omitempty"`
	Ready       bool   `json:"ready,omitempty"`
}

// protocolError marks a malformed payload. It never touches game state
// and is reported only to the offending connection.
type protocolError struct{ reason string }

func (e *protocolError) Error() string { return "protocol error: " + e.reason }

func errProtocol(format string, args ...any) error {
	return &protocolError{reason: fmt.Sprintf(format, args...)}
}

// decodeAction translates a wire payload into an engine action.
func decodeAction(playerID int, p *ActionPayload) (game.Action, error) {
	if p == nil {
		return nil, errProtocol("missing action payload")
	}
	switch p.Type {
	case "play_pokemon":
		return game.PlayPokemon{Player: playerID, HandIndex: p.HandIndex, Slot: game.Slot(p.Slot)}, nil
	case "play_trainer":
		return game.PlayTrainer{Player: playerID, HandIndex: p.HandIndex}, nil
	case "attach_energy":
		return game.AttachEnergy{Player: playerID, Slot: game.Slot(p.Slot), EnergyType: card.EnergyType(p.EnergyType)}, nil
	case "attack":
		return game.Attack{Player: playerID, AttackName: p.AttackName}, nil
	case "use_ability":
		return game.UseAbility{Player: playerID, Slot: game.Slot(p.Slot), AbilityName: p.AbilityName}, nil
	case "switch":
		return game.Switch{Player: playerID, BenchSlot: game.Slot(p.Slot)}, nil
	case "draw_card":
		return game.DrawCard{Player: playerID}, nil
	case "pass_turn":
		return game.PassTurn{Player: playerID}, nil
	case "setup_ready":
		return game.SetupReady{Player: playerID, Ready: p.Ready}, nil
	case "start_game":
		// Legacy alias kept for older clients: readies the player up.
		return game.SetupReady{Player: playerID, Ready: true}, nil
	default:
		return nil, errProtocol("unknown action type %q", p.Type)
	}
}

// CardResult is one card_search hit.
type CardResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	HP   int    `json:"hp,omitempty"`
}

// SearchResponse answers a card_search request.
type SearchResponse struct {
	Type  string       `json:"type"` // always "card_search_result"
	Query string       `json:"query"`
	Cards []CardResult `json:"cards"`
}
