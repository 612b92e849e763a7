package game

import (
	"fmt"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

// BattleEntity is the mutable in-play wrapper around an immutable card.
// CurrentHP and DamageTaken are kept in lockstep on every mutation so
// that CurrentHP+DamageTaken == MaxHP always holds; CheckInvariants
// verifies it.
type BattleEntity struct {
	Card          *card.Card        `json:"card"`
	CurrentHP     int               `json:"current_hp"`
	DamageTaken   int               `json:"damage_taken"`
	Energy        []card.EnergyType `json:"energy"`
	Statuses      []Status          `json:"statuses"`
	AbilitiesUsed map[string]bool   `json:"abilities_used,omitempty"`
}

// NewBattleEntity places a card into play at full HP.
func NewBattleEntity(c *card.Card) *BattleEntity {
	return &BattleEntity{
		Card:      c,
		CurrentHP: c.HP,
	}
}

// MaxHP is the printed HP of the wrapped card.
func (e *BattleEntity) MaxHP() int {
	return e.Card.HP
}

// IsKnockedOut reports whether the entity has no HP left.
func (e *BattleEntity) IsKnockedOut() bool {
	return e.CurrentHP <= 0
}

// ApplyDamage marks damage on the entity, clamping CurrentHP at zero.
// Returns the damage actually applied.
func (e *BattleEntity) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	if amount > e.CurrentHP {
		amount = e.CurrentHP
	}
	e.CurrentHP -= amount
	e.DamageTaken += amount
	return amount
}

// Heal removes damage from the entity, clamping at max HP. Returns the
// amount actually healed.
func (e *BattleEntity) Heal(amount int) int {
	if amount <= 0 {
		return 0
	}
	if amount > e.DamageTaken {
		amount = e.DamageTaken
	}
	e.CurrentHP += amount
	e.DamageTaken -= amount
	return amount
}

// SetHP forces CurrentHP to the given value, re-deriving DamageTaken.
// Sandbox only; normal play goes through ApplyDamage/Heal.
func (e *BattleEntity) SetHP(hp int) {
	if hp < 0 {
		hp = 0
	}
	if hp > e.MaxHP() {
		hp = e.MaxHP()
	}
	e.CurrentHP = hp
	e.DamageTaken = e.MaxHP() - hp
}

// AttachEnergy appends an energy of the given type.
func (e *BattleEntity) AttachEnergy(t card.EnergyType) {
	e.Energy = append(e.Energy, t)
}

// DiscardEnergy removes up to count energy, preferring the requested
// type and falling back to any. Returns the discarded energy.
func (e *BattleEntity) DiscardEnergy(t card.EnergyType, count int) []card.EnergyType {
	var discarded []card.EnergyType
	for i := 0; i < len(e.Energy) && len(discarded) < count; {
		if t == "" || t == card.EnergyColorless || e.Energy[i] == t {
			discarded = append(discarded, e.Energy[i])
			e.Energy = append(e.Energy[:i], e.Energy[i+1:]...)
			continue
		}
		i++
	}
	// Fall back to any color if the typed pass came up short.
	for len(discarded) < count && len(e.Energy) > 0 {
		discarded = append(discarded, e.Energy[0])
		e.Energy = e.Energy[1:]
	}
	return discarded
}

// AbilityUsed reports whether the named single-use ability was already
// activated this turn.
func (e *BattleEntity) AbilityUsed(name string) bool {
	return e.AbilitiesUsed[name]
}

// MarkAbilityUsed records a single-use ability activation. Tracking is
// per entity, so two in-play copies of a card track separately.
func (e *BattleEntity) MarkAbilityUsed(name string) {
	if e.AbilitiesUsed == nil {
		e.AbilitiesUsed = make(map[string]bool)
	}
	e.AbilitiesUsed[name] = true
}

// resetAbilityUses clears the per-turn ability tracking.
func (e *BattleEntity) resetAbilityUses() {
	e.AbilitiesUsed = nil
}

// HasStatus reports whether the entity currently has the given condition.
func (e *BattleEntity) HasStatus(kind StatusKind) bool {
	for _, s := range e.Statuses {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// ApplyStatus adds a condition. Applying one of the exclusive group
// (asleep/paralyzed/confused) clears the other two first; burn and
// poison stack freely alongside. Re-applying a condition refreshes it.
func (e *BattleEntity) ApplyStatus(s Status) {
	if exclusiveStatus(s.Kind) {
		kept := e.Statuses[:0]
		for _, existing := range e.Statuses {
			if !exclusiveStatus(existing.Kind) {
				kept = append(kept, existing)
			}
		}
		e.Statuses = kept
	} else {
		e.ClearStatus(s.Kind)
	}
	e.Statuses = append(e.Statuses, s)
}

// ClearStatus removes the condition if present. Returns whether it was.
func (e *BattleEntity) ClearStatus(kind StatusKind) bool {
	for i, s := range e.Statuses {
		if s.Kind == kind {
			e.Statuses = append(e.Statuses[:i], e.Statuses[i+1:]...)
			return true
		}
	}
	return false
}

// tickStatuses advances turn counters, dropping expired conditions.
func (e *BattleEntity) tickStatuses() {
	kept := e.Statuses[:0]
	for _, s := range e.Statuses {
		if s.TurnsRemaining > 0 {
			s.TurnsRemaining--
			if s.TurnsRemaining == 0 {
				continue
			}
		}
		kept = append(kept, s)
	}
	e.Statuses = kept
}

// CheckInvariants verifies the HP bookkeeping.
func (e *BattleEntity) CheckInvariants() error {
	if e.CurrentHP < 0 || e.CurrentHP > e.MaxHP() {
		return fmt.Errorf("%w: %s current_hp %d out of range [0,%d]",
			ErrInvariantViolation, e.Card.Name, e.CurrentHP, e.MaxHP())
	}
	if e.CurrentHP+e.DamageTaken != e.MaxHP() {
		return fmt.Errorf("%w: %s current_hp %d + damage_taken %d != max_hp %d",
			ErrInvariantViolation, e.Card.Name, e.CurrentHP, e.DamageTaken, e.MaxHP())
	}
	return nil
}

// Clone deep-copies the entity. The wrapped card is shared; it is
// immutable master data.
func (e *BattleEntity) Clone() *BattleEntity {
	if e == nil {
		return nil
	}
	cp := &BattleEntity{
		Card:        e.Card,
		CurrentHP:   e.CurrentHP,
		DamageTaken: e.DamageTaken,
	}
	if len(e.Energy) > 0 {
		cp.Energy = append([]card.EnergyType(nil), e.Energy...)
	}
	if len(e.Statuses) > 0 {
		cp.Statuses = append([]Status(nil), e.Statuses...)
	}
	if len(e.AbilitiesUsed) > 0 {
		cp.AbilitiesUsed = make(map[string]bool, len(e.AbilitiesUsed))
		for k, v := range e.AbilitiesUsed {
			cp.AbilitiesUsed[k] = v
		}
	}
	return cp
}
