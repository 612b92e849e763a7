package game

import (
	"github.com/ptcgsim/battle-server-go/internal/card"
)

// BenchSize is the number of bench slots per player.
const BenchSize = 3

// PrizePointsToWin ends the game for whoever reaches it first.
const PrizePointsToWin = 3

// Slot addresses a board position: 0 is the active slot, 1..BenchSize
// are bench positions.
type Slot int

// SlotActive is the single attack-capable position.
const SlotActive Slot = 0

// Valid reports whether the slot is addressable.
func (s Slot) Valid() bool {
	return s >= 0 && s <= BenchSize
}

// IsBench reports whether the slot is a bench position.
func (s Slot) IsBench() bool {
	return s >= 1 && s <= BenchSize
}

// PlayerState is one player's half of the board.
type PlayerState struct {
	ID                     int                      `json:"id"`
	Active                 *BattleEntity            `json:"active"`
	Bench                  [BenchSize]*BattleEntity `json:"bench"`
	Hand                   []*card.Card             `json:"hand"`
	Deck                   []*card.Card             `json:"deck"`
	Discard                []*card.Card             `json:"discard"`
	PrizePoints            int                      `json:"prize_points"`
	EnergyAttachedThisTurn bool                     `json:"energy_attached_this_turn"`
	SetupReady             bool                     `json:"setup_ready"`
	EnergyPerTurn          int                      `json:"energy_per_turn"`
}

// NewPlayerState creates an empty board for the given player index.
func NewPlayerState(id int) *PlayerState {
	return &PlayerState{
		ID:            id,
		EnergyPerTurn: 1,
	}
}

// EntityAt returns the entity in the given slot, or nil.
func (p *PlayerState) EntityAt(slot Slot) *BattleEntity {
	if !slot.Valid() {
		return nil
	}
	if slot == SlotActive {
		return p.Active
	}
	return p.Bench[slot-1]
}

// setEntity places an entity into the slot, replacing any occupant.
func (p *PlayerState) setEntity(slot Slot, e *BattleEntity) {
	if slot == SlotActive {
		p.Active = e
		return
	}
	p.Bench[slot-1] = e
}

// FirstEmptySlot returns the first unoccupied slot (active preferred),
// or -1 if the board is full.
func (p *PlayerState) FirstEmptySlot() Slot {
	if p.Active == nil {
		return SlotActive
	}
	for i := 0; i < BenchSize; i++ {
		if p.Bench[i] == nil {
			return Slot(i + 1)
		}
	}
	return -1
}

// BenchEntities returns occupied bench slots in order.
func (p *PlayerState) BenchEntities() []Slot {
	var slots []Slot
	for i := 0; i < BenchSize; i++ {
		if p.Bench[i] != nil {
			slots = append(slots, Slot(i+1))
		}
	}
	return slots
}

// HasBoardPresence reports whether any slot is occupied.
func (p *PlayerState) HasBoardPresence() bool {
	return p.Active != nil || len(p.BenchEntities()) > 0
}

// removeFromHand removes and returns the card at the index.
func (p *PlayerState) removeFromHand(idx int) *card.Card {
	c := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return c
}

// drawOne moves the top deck card into the hand. Returns false when the
// deck is empty, which is a loss condition for this player.
func (p *PlayerState) drawOne() (*card.Card, bool) {
	if len(p.Deck) == 0 {
		return nil, false
	}
	top := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.Hand = append(p.Hand, top)
	return top, true
}

// discardEntity moves an entity's card and attached energy to the
// discard pile. Attached energy cards are not modeled individually;
// the energy list simply ceases to exist with the entity.
func (p *PlayerState) discardEntity(e *BattleEntity) {
	p.Discard = append(p.Discard, e.Card)
}

// beginTurn resets the per-turn flags when this player's turn starts.
func (p *PlayerState) beginTurn() {
	p.EnergyAttachedThisTurn = false
	if p.Active != nil {
		p.Active.resetAbilityUses()
	}
	for i := 0; i < BenchSize; i++ {
		if p.Bench[i] != nil {
			p.Bench[i].resetAbilityUses()
		}
	}
}

// CheckInvariants validates every entity on the board.
func (p *PlayerState) CheckInvariants() error {
	if p.Active != nil {
		if err := p.Active.CheckInvariants(); err != nil {
			return err
		}
	}
	for i := 0; i < BenchSize; i++ {
		if p.Bench[i] != nil {
			if err := p.Bench[i].CheckInvariants(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clone deep-copies the player state. Card pointers are shared.
func (p *PlayerState) Clone() *PlayerState {
	cp := &PlayerState{
		ID:                     p.ID,
		Active:                 p.Active.Clone(),
		PrizePoints:            p.PrizePoints,
		EnergyAttachedThisTurn: p.EnergyAttachedThisTurn,
		SetupReady:             p.SetupReady,
		EnergyPerTurn:          p.EnergyPerTurn,
	}
	for i := 0; i < BenchSize; i++ {
		cp.Bench[i] = p.Bench[i].Clone()
	}
	if len(p.Hand) > 0 {
		cp.Hand = append([]*card.Card(nil), p.Hand...)
	}
	if len(p.Deck) > 0 {
		cp.Deck = append([]*card.Card(nil), p.Deck...)
	}
	if len(p.Discard) > 0 {
		cp.Discard = append([]*card.Card(nil), p.Discard...)
	}
	return cp
}
