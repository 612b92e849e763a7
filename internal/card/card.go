package card

import (
	"fmt"
	"strings"
)

// Kind identifies the broad card category.
type Kind string

const (
	KindPokemon Kind = "POKEMON"
	KindTrainer Kind = "TRAINER"
	KindEnergy  Kind = "ENERGY"
)

// EnergyType enumerates the energy colors used for attack costs,
// attachments and weakness matching.
type EnergyType string

const (
	EnergyGrass     EnergyType = "GRASS"
	EnergyFire      EnergyType = "FIRE"
	EnergyWater     EnergyType = "WATER"
	EnergyLightning EnergyType = "LIGHTNING"
	EnergyPsychic   EnergyType = "PSYCHIC"
	EnergyFighting  EnergyType = "FIGHTING"
	EnergyDarkness  EnergyType = "DARKNESS"
	EnergyMetal     EnergyType = "METAL"
	EnergyDragon    EnergyType = "DRAGON"
	EnergyColorless EnergyType = "COLORLESS"
)

// Stage is the evolution stage: 0 for a basic Pokémon, 1 and 2 for
// evolved forms.
type Stage int

// EffectInstruction is a single pre-parsed effect step attached to an
// attack or ability. Instructions are produced by an external parser
// from free card text; the engine executes them as data. Instructions
// whose Confidence falls below the configured threshold are treated as
// informational only and never auto-executed.
type EffectInstruction struct {
	Kind       string     `yaml:"kind" json:"kind"`
	Amount     int        `yaml:"amount" json:"amount"`
	Count      int        `yaml:"count" json:"count"`
	Status     string     `yaml:"status" json:"status"`
	Target     string     `yaml:"target" json:"target"`
	EnergyType EnergyType `yaml:"energy_type" json:"energy_type"`
	Confidence float64    `yaml:"confidence" json:"confidence"`
	Raw        string     `yaml:"raw" json:"raw"`
}

// Effect instruction kinds understood by the resolver. Anything else is
// skipped with a logged warning.
const (
	EffectDamageBonus    = "damage_bonus"
	EffectSelfDamage     = "self_damage"
	EffectHeal           = "heal"
	EffectApplyStatus    = "apply_status"
	EffectCoinFlipDamage = "coin_flip_damage"
	EffectDiscardEnergy  = "discard_energy"
	EffectAttachEnergy   = "attach_energy"
	EffectDrawCards      = "draw_cards"
	EffectForceSwitch    = "force_switch"
)

// Effect targets.
const (
	TargetSelf           = "self"
	TargetOpponentActive = "opponent_active"
	TargetOwnActive      = "own_active"
)

// Attack describes a single attack printed on a Pokémon card.
type Attack struct {
	Name    string              `yaml:"name" json:"name"`
	Cost    []EnergyType        `yaml:"cost" json:"cost"`
	Damage  int                 `yaml:"damage" json:"damage"`
	Text    string              `yaml:"text" json:"text"`
	Effects []EffectInstruction `yaml:"effects" json:"effects"`
}

// Ability describes a non-attack ability. SingleUse abilities may be
// activated at most once per turn.
type Ability struct {
	Name      string              `yaml:"name" json:"name"`
	Text      string              `yaml:"text" json:"text"`
	SingleUse bool                `yaml:"single_use" json:"single_use"`
	Effects   []EffectInstruction `yaml:"effects" json:"effects"`
}

// Card is the immutable master-data description of a card. Cards are
// loaded once and shared by reference; the engine never mutates them.
type Card struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Kind        Kind                `yaml:"kind" json:"kind"`
	EnergyType  EnergyType          `yaml:"energy_type" json:"energy_type"`
	HP          int                 `yaml:"hp" json:"hp"`
	Attacks     []Attack            `yaml:"attacks" json:"attacks"`
	Abilities   []Ability           `yaml:"abilities" json:"abilities"`
	Stage       Stage               `yaml:"stage" json:"stage"`
	EvolvesFrom string              `yaml:"evolves_from" json:"evolves_from"`
	RetreatCost int                 `yaml:"retreat_cost" json:"retreat_cost"`
	Weakness    EnergyType          `yaml:"weakness" json:"weakness"`
	IsEx        bool                `yaml:"is_ex" json:"is_ex"`
	Trainer     []EffectInstruction `yaml:"trainer_effects" json:"trainer_effects"`
}

// IsBasic reports whether the card can be played directly to an empty slot.
func (c *Card) IsBasic() bool {
	return c.Kind == KindPokemon && c.Stage == 0
}

// FindAttack returns the named attack, matching case-insensitively.
func (c *Card) FindAttack(name string) (*Attack, bool) {
	for i := range c.Attacks {
		if strings.EqualFold(c.Attacks[i].Name, name) {
			return &c.Attacks[i], true
		}
	}
	return nil, false
}

// FindAbility returns the named ability, matching case-insensitively.
func (c *Card) FindAbility(name string) (*Ability, bool) {
	for i := range c.Abilities {
		if strings.EqualFold(c.Abilities[i].Name, name) {
			return &c.Abilities[i], true
		}
	}
	return nil, false
}

// Validate checks master-data consistency at load time.
func (c *Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card %q: missing id", c.Name)
	}
	if c.Name == "" {
		return fmt.Errorf("card %s: missing name", c.ID)
	}
	switch c.Kind {
	case KindPokemon:
		if c.HP <= 0 {
			return fmt.Errorf("card %s: pokemon must have positive HP, got %d", c.ID, c.HP)
		}
		if c.Stage > 0 && c.EvolvesFrom == "" {
			return fmt.Errorf("card %s: stage %d requires evolves_from", c.ID, c.Stage)
		}
	case KindTrainer, KindEnergy:
		// No HP requirements.
	default:
		return fmt.Errorf("card %s: unknown kind %q", c.ID, c.Kind)
	}
	return nil
}
