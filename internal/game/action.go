package game

import "github.com/ptcgsim/battle-server-go/internal/card"

// ActionKind identifies one of the supported action variants.
type ActionKind string

const (
	ActionPlayPokemon  ActionKind = "play_pokemon"
	ActionPlayTrainer  ActionKind = "play_trainer"
	ActionAttachEnergy ActionKind = "attach_energy"
	ActionAttack       ActionKind = "attack"
	ActionUseAbility   ActionKind = "use_ability"
	ActionSwitch       ActionKind = "switch"
	ActionDrawCard     ActionKind = "draw_card"
	ActionPassTurn     ActionKind = "pass_turn"
	ActionSetupReady   ActionKind = "setup_ready"
)

// Action is a proposed mutation of a battle. Each kind carries its own
// strongly typed payload struct, so a malformed payload cannot reach the
// resolver.
type Action interface {
	Kind() ActionKind
	Actor() int
}

// PlayPokemon moves a Pokémon card from the hand onto the board. A
// basic goes to any empty slot; an evolution targets the slot holding
// the entity it evolves from.
type PlayPokemon struct {
	Player    int
	HandIndex int
	Slot      Slot
}

func (a PlayPokemon) Kind() ActionKind { return ActionPlayPokemon }
func (a PlayPokemon) Actor() int       { return a.Player }

// PlayTrainer plays a trainer card from the hand and executes its
// effect instructions, then discards it.
type PlayTrainer struct {
	Player    int
	HandIndex int
}

func (a PlayTrainer) Kind() ActionKind { return ActionPlayTrainer }
func (a PlayTrainer) Actor() int       { return a.Player }

// AttachEnergy attaches one energy of the given type to an occupied
// slot. Limited to once per turn per player.
type AttachEnergy struct {
	Player     int
	Slot       Slot
	EnergyType card.EnergyType
}

func (a AttachEnergy) Kind() ActionKind { return ActionAttachEnergy }
func (a AttachEnergy) Actor() int       { return a.Player }

// Attack uses the named attack of the active entity and ends the turn.
type Attack struct {
	Player     int
	AttackName string
}

func (a Attack) Kind() ActionKind { return ActionAttack }
func (a Attack) Actor() int       { return a.Player }

// UseAbility activates the named ability on the entity in the slot.
type UseAbility struct {
	Player      int
	Slot        Slot
	AbilityName string
}

func (a UseAbility) Kind() ActionKind { return ActionUseAbility }
func (a UseAbility) Actor() int       { return a.Player }

// Switch retreats the active entity to the bench slot's position,
// paying the retreat cost in discarded energy.
type Switch struct {
	Player    int
	BenchSlot Slot
}

func (a Switch) Kind() ActionKind { return ActionSwitch }
func (a Switch) Actor() int       { return a.Player }

// DrawCard draws the top card of the deck. Drawing from an empty deck
// loses the battle.
type DrawCard struct {
	Player int
}

func (a DrawCard) Kind() ActionKind { return ActionDrawCard }
func (a DrawCard) Actor() int       { return a.Player }

// PassTurn ends the acting player's turn.
type PassTurn struct {
	Player int
}

func (a PassTurn) Kind() ActionKind { return ActionPassTurn }
func (a PassTurn) Actor() int       { return a.Player }

// SetupReady toggles the player's readiness during Setup.
type SetupReady struct {
	Player int
	Ready  bool
}

func (a SetupReady) Kind() ActionKind { return ActionSetupReady }
func (a SetupReady) Actor() int       { return a.Player }
