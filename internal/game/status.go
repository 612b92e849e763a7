package game

// StatusKind identifies a status condition.
type StatusKind string

const (
	StatusBurned    StatusKind = "BURNED"
	StatusPoisoned  StatusKind = "POISONED"
	StatusAsleep    StatusKind = "ASLEEP"
	StatusParalyzed StatusKind = "PARALYZED"
	StatusConfused  StatusKind = "CONFUSED"
)

// Per-turn checkup damage amounts.
const (
	burnDamagePerTurn   = 20
	poisonDamagePerTurn = 10
)

// Status is one active condition on a battle entity. TurnsRemaining of
// zero means the condition persists until explicitly cleared.
type Status struct {
	Kind           StatusKind `json:"kind"`
	TurnsRemaining int        `json:"turns_remaining"`
	DamagePerTurn  int        `json:"damage_per_turn"`
}

// exclusiveStatus reports whether the kind belongs to the mutually
// exclusive sleep/paralysis/confusion group.
func exclusiveStatus(kind StatusKind) bool {
	switch kind {
	case StatusAsleep, StatusParalyzed, StatusConfused:
		return true
	}
	return false
}

// knownStatus reports whether the kind is one of the five conditions.
func knownStatus(kind StatusKind) bool {
	switch kind {
	case StatusBurned, StatusPoisoned, StatusAsleep, StatusParalyzed, StatusConfused:
		return true
	}
	return false
}

// newStatus builds a condition with its default per-turn damage.
func newStatus(kind StatusKind, turns int) Status {
	s := Status{Kind: kind, TurnsRemaining: turns}
	switch kind {
	case StatusBurned:
		s.DamagePerTurn = burnDamagePerTurn
	case StatusPoisoned:
		s.DamagePerTurn = poisonDamagePerTurn
	}
	return s
}
