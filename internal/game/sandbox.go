package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

// Sandbox mutates a battle directly, bypassing the resolver's legality
// checks. Every call still re-derives dependent state (HP bookkeeping,
// knock-out detection) so the board stays internally consistent, and
// every emitted event is tagged as a sandbox event so clients can render
// it differently from rules-driven play.
type Sandbox struct {
	logger *zap.Logger
}

// NewSandbox creates the override layer.
func NewSandbox(logger *zap.Logger) *Sandbox {
	return &Sandbox{logger: logger}
}

func (s *Sandbox) log() *eventLog {
	return &eventLog{sandbox: true}
}

// PlaceCard puts a card into a slot or hand for either player,
// regardless of turn, phase or evolution rules. Slot -1 targets the hand.
func (s *Sandbox) PlaceCard(gs *GameState, player int, c *card.Card, slot Slot, toHand bool) ([]Event, error) {
	p := gs.Player(player)
	if p == nil {
		return nil, errInvalidTarget("no such player %d", player)
	}
	log := s.log()

	if toHand {
		p.Hand = append(p.Hand, c)
		log.add(Event{
			Type:        EventCardPlayed,
			Player:      player,
			Card:        c.Name,
			Description: fmt.Sprintf("%s was placed into player %d's hand", c.Name, player),
		})
		return log.events, nil
	}

	if !slot.Valid() {
		return nil, errInvalidTarget("slot %d does not exist", slot)
	}
	if c.Kind != card.KindPokemon {
		return nil, errIllegal("%s cannot occupy a board slot", c.Name)
	}
	if existing := p.EntityAt(slot); existing != nil {
		p.discardEntity(existing)
	}
	p.setEntity(slot, NewBattleEntity(c))
	log.add(Event{Type: EventCardPlayed, Player: player, Card: c.Name, Slot: slot})

	s.logger.Debug("sandbox placed card",
		zap.String("battle_id", gs.BattleID),
		zap.Int("player", player),
		zap.String("card", c.Name),
	)
	return log.events, nil
}

// SetHP forces an entity's current HP, re-deriving damage taken. A
// forced zero knocks the entity out immediately, even off-turn and even
// on the bench.
func (s *Sandbox) SetHP(gs *GameState, player int, slot Slot, hp int) ([]Event, error) {
	entity, err := s.entityAt(gs, player, slot)
	if err != nil {
		return nil, err
	}
	log := s.log()

	entity.SetHP(hp)
	log.add(Event{
		Type:        EventDamageDealt,
		Player:      player,
		Card:        entity.Card.Name,
		Amount:      entity.DamageTaken,
		Description: fmt.Sprintf("%s HP forced to %d", entity.Card.Name, entity.CurrentHP),
	})

	gs.knockOutSweep(log)
	return log.events, nil
}

// ApplyStatus force-applies a condition. Unlike normal play the
// exclusivity rule is not enforced here: the sandbox may stack asleep on
// paralyzed to reproduce odd board states.
func (s *Sandbox) ApplyStatus(gs *GameState, player int, slot Slot, kind StatusKind, turns int) ([]Event, error) {
	entity, err := s.entityAt(gs, player, slot)
	if err != nil {
		return nil, err
	}
	if !knownStatus(kind) {
		return nil, errInvalidTarget("unknown status %q", kind)
	}
	log := s.log()

	entity.ClearStatus(kind)
	entity.Statuses = append(entity.Statuses, newStatus(kind, turns))
	log.add(Event{Type: EventStatusApplied, Player: player, Card: entity.Card.Name, Status: kind})
	return log.events, nil
}

// ClearStatus force-removes a condition if present.
func (s *Sandbox) ClearStatus(gs *GameState, player int, slot Slot, kind StatusKind) ([]Event, error) {
	entity, err := s.entityAt(gs, player, slot)
	if err != nil {
		return nil, err
	}
	log := s.log()
	if entity.ClearStatus(kind) {
		log.add(Event{Type: EventStatusCleared, Player: player, Card: entity.Card.Name, Status: kind})
	}
	return log.events, nil
}

// AttachEnergy force-attaches energy, ignoring the once-per-turn limit.
func (s *Sandbox) AttachEnergy(gs *GameState, player int, slot Slot, energyType card.EnergyType, count int) ([]Event, error) {
	entity, err := s.entityAt(gs, player, slot)
	if err != nil {
		return nil, err
	}
	if energyType == "" {
		return nil, errInvalidTarget("missing energy type")
	}
	if count <= 0 {
		count = 1
	}
	log := s.log()
	for i := 0; i < count; i++ {
		entity.AttachEnergy(energyType)
	}
	log.add(Event{Type: EventEnergyAttached, Player: player, Card: entity.Card.Name, Amount: count})
	return log.events, nil
}

// RemoveEntity takes an entity off the board outright, discarding it
// without awarding prize points.
func (s *Sandbox) RemoveEntity(gs *GameState, player int, slot Slot) ([]Event, error) {
	entity, err := s.entityAt(gs, player, slot)
	if err != nil {
		return nil, err
	}
	p := gs.Player(player)
	p.setEntity(slot, nil)
	p.discardEntity(entity)

	log := s.log()
	log.add(Event{Type: EventEntityRemoved, Player: player, Card: entity.Card.Name, Slot: slot})
	gs.promoteIfNeeded(player, log)
	return log.events, nil
}

func (s *Sandbox) entityAt(gs *GameState, player int, slot Slot) (*BattleEntity, error) {
	p := gs.Player(player)
	if p == nil {
		return nil, errInvalidTarget("no such player %d", player)
	}
	if !slot.Valid() {
		return nil, errInvalidTarget("slot %d does not exist", slot)
	}
	entity := p.EntityAt(slot)
	if entity == nil {
		return nil, errNoTarget("slot %d is empty", slot)
	}
	return entity, nil
}
