package game

import "fmt"

// EventType enumerates the discrete sub-events a resolution can produce.
type EventType string

const (
	EventCardDrawn       EventType = "CARD_DRAWN"
	EventCardPlayed      EventType = "CARD_PLAYED"
	EventEvolved         EventType = "EVOLVED"
	EventEnergyAttached  EventType = "ENERGY_ATTACHED"
	EventEnergyDiscarded EventType = "ENERGY_DISCARDED"
	EventAttackUsed      EventType = "ATTACK_USED"
	EventAbilityUsed     EventType = "ABILITY_USED"
	EventTrainerPlayed   EventType = "TRAINER_PLAYED"
	EventDamageDealt     EventType = "DAMAGE_DEALT"
	EventHealed          EventType = "HEALED"
	EventCoinFlip        EventType = "COIN_FLIP"
	EventStatusApplied   EventType = "STATUS_APPLIED"
	EventStatusCleared   EventType = "STATUS_CLEARED"
	EventKnockOut        EventType = "KNOCK_OUT"
	EventPrizeAwarded    EventType = "PRIZE_AWARDED"
	EventSwitched        EventType = "SWITCHED"
	EventPromoted        EventType = "PROMOTED"
	EventPhaseChanged    EventType = "PHASE_CHANGED"
	EventTurnBegan       EventType = "TURN_BEGAN"
	EventSetupReady      EventType = "SETUP_READY"
	EventEffectSkipped   EventType = "EFFECT_SKIPPED"
	EventEntityRemoved   EventType = "ENTITY_REMOVED"
	EventGameEnded       EventType = "GAME_ENDED"
)

// Event is one entry of a resolution log. Events are appended in the
// order they occurred and broadcast to clients for display; Description
// carries the human-readable rendering.
type Event struct {
	Type        EventType  `json:"type"`
	Player      int        `json:"player"`
	Card        string     `json:"card,omitempty"`
	Amount      int        `json:"amount,omitempty"`
	Status      StatusKind `json:"status,omitempty"`
	Slot        Slot       `json:"slot,omitempty"`
	Heads       bool       `json:"heads,omitempty"`
	Sandbox     bool       `json:"sandbox,omitempty"`
	Description string     `json:"description"`
}

// eventLog accumulates events during one resolution.
type eventLog struct {
	events  []Event
	sandbox bool
}

func (l *eventLog) add(ev Event) {
	ev.Sandbox = l.sandbox
	if ev.Description == "" {
		ev.Description = describe(ev)
	}
	l.events = append(l.events, ev)
}

func describe(ev Event) string {
	who := fmt.Sprintf("player %d", ev.Player)
	switch ev.Type {
	case EventCardDrawn:
		return fmt.Sprintf("%s drew a card", who)
	case EventCardPlayed:
		return fmt.Sprintf("%s played %s", who, ev.Card)
	case EventEvolved:
		return fmt.Sprintf("%s evolved into %s", who, ev.Card)
	case EventEnergyAttached:
		return fmt.Sprintf("%s attached energy to %s", who, ev.Card)
	case EventEnergyDiscarded:
		return fmt.Sprintf("%s discarded %d energy from %s", who, ev.Amount, ev.Card)
	case EventAttackUsed:
		return fmt.Sprintf("%s attacked with %s", who, ev.Card)
	case EventAbilityUsed:
		return fmt.Sprintf("%s used ability %s", who, ev.Card)
	case EventTrainerPlayed:
		return fmt.Sprintf("%s played trainer %s", who, ev.Card)
	case EventDamageDealt:
		return fmt.Sprintf("%s took %d damage", ev.Card, ev.Amount)
	case EventHealed:
		return fmt.Sprintf("%s healed %d damage", ev.Card, ev.Amount)
	case EventCoinFlip:
		if ev.Heads {
			return fmt.Sprintf("%s flipped heads", who)
		}
		return fmt.Sprintf("%s flipped tails", who)
	case EventStatusApplied:
		return fmt.Sprintf("%s is now %s", ev.Card, ev.Status)
	case EventStatusCleared:
		return fmt.Sprintf("%s is no longer %s", ev.Card, ev.Status)
	case EventKnockOut:
		return fmt.Sprintf("%s was knocked out", ev.Card)
	case EventPrizeAwarded:
		return fmt.Sprintf("%s gained %d prize point(s)", who, ev.Amount)
	case EventSwitched:
		return fmt.Sprintf("%s switched %s to the active spot", who, ev.Card)
	case EventPromoted:
		return fmt.Sprintf("%s promoted %s from the bench", who, ev.Card)
	case EventPhaseChanged:
		return fmt.Sprintf("phase changed to %s", ev.Card)
	case EventTurnBegan:
		return fmt.Sprintf("turn %d: %s to act", ev.Amount, who)
	case EventSetupReady:
		return fmt.Sprintf("%s is ready", who)
	case EventEffectSkipped:
		return fmt.Sprintf("effect %q was not executed", ev.Card)
	case EventEntityRemoved:
		return fmt.Sprintf("%s was removed from play", ev.Card)
	case EventGameEnded:
		return "the battle has ended"
	default:
		return string(ev.Type)
	}
}
