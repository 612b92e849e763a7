package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

// Effect instructions come from an external free-text parser, so the
// interpreter must be total: anything it does not understand, or was
// parsed with low confidence, becomes a logged no-op instead of a fault.

// splitEffects partitions instructions into executable and
// informational-only, applying the confidence threshold.
func (r *Resolver) splitEffects(effects []card.EffectInstruction) (executable, informational []card.EffectInstruction) {
	for _, ef := range effects {
		if ef.Confidence < r.threshold {
			informational = append(informational, ef)
			continue
		}
		executable = append(executable, ef)
	}
	return executable, informational
}

// damageModifiers evaluates the instructions that change an attack's
// numeric damage before it is applied. Returns the total bonus.
func (r *Resolver) damageModifiers(gs *GameState, actor int, effects []card.EffectInstruction, log *eventLog) int {
	bonus := 0
	for _, ef := range effects {
		switch ef.Kind {
		case card.EffectDamageBonus:
			bonus += ef.Amount
		case card.EffectCoinFlipDamage:
			flips := ef.Count
			if flips <= 0 {
				flips = 1
			}
			for i := 0; i < flips; i++ {
				if r.flip(actor, log) {
					bonus += ef.Amount
				}
			}
		}
	}
	return bonus
}

// isDamageModifier reports whether the instruction was already consumed
// by damageModifiers.
func isDamageModifier(kind string) bool {
	return kind == card.EffectDamageBonus || kind == card.EffectCoinFlipDamage
}

// runSecondaryEffects executes the non-damage-modifier instructions of
// an attack, in listed order, against the post-KO board.
func (r *Resolver) runSecondaryEffects(gs *GameState, actor int, effects []card.EffectInstruction, log *eventLog) {
	for _, ef := range effects {
		if isDamageModifier(ef.Kind) {
			continue
		}
		r.runOne(gs, actor, ef, log)
	}
}

// runEffects is the full pipeline for abilities and trainer cards:
// damage modifiers make no sense without a base attack, so every
// executable instruction runs in listed order.
func (r *Resolver) runEffects(gs *GameState, actor int, effects []card.EffectInstruction, log *eventLog) {
	executable, informational := r.splitEffects(effects)
	for _, ef := range executable {
		r.runOne(gs, actor, ef, log)
	}
	r.logInformational(actor, informational, log)
}

func (r *Resolver) logInformational(actor int, effects []card.EffectInstruction, log *eventLog) {
	for _, ef := range effects {
		log.add(Event{
			Type:        EventEffectSkipped,
			Player:      actor,
			Card:        ef.Kind,
			Description: fmt.Sprintf("effect %q skipped (confidence %.2f below threshold)", ef.Kind, ef.Confidence),
		})
		r.logger.Debug("skipping low-confidence effect",
			zap.String("kind", ef.Kind),
			zap.Float64("confidence", ef.Confidence),
			zap.String("raw", ef.Raw),
		)
	}
}

// resolveTarget maps an instruction target to an entity on the board.
// Defaults to the actor's active entity.
func resolveTarget(gs *GameState, actor int, target string) (*BattleEntity, int) {
	switch target {
	case card.TargetOpponentActive:
		opp := gs.Opponent(actor)
		return opp.Active, opp.ID
	case card.TargetSelf, card.TargetOwnActive, "":
		return gs.Player(actor).Active, actor
	default:
		return nil, actor
	}
}

// runOne executes a single effect instruction. Unknown kinds are logged
// no-ops: unparsed card text must never crash a battle.
func (r *Resolver) runOne(gs *GameState, actor int, ef card.EffectInstruction, log *eventLog) {
	switch ef.Kind {
	case card.EffectSelfDamage:
		self := gs.Player(actor).Active
		if self == nil {
			return
		}
		dealt := self.ApplyDamage(ef.Amount)
		if dealt > 0 {
			log.add(Event{Type: EventDamageDealt, Player: actor, Card: self.Card.Name, Amount: dealt})
		}

	case card.EffectHeal:
		target, owner := resolveTarget(gs, actor, ef.Target)
		if target == nil {
			return
		}
		healed := target.Heal(ef.Amount)
		if healed > 0 {
			log.add(Event{Type: EventHealed, Player: owner, Card: target.Card.Name, Amount: healed})
		}

	case card.EffectApplyStatus:
		kind := StatusKind(ef.Status)
		if !knownStatus(kind) {
			r.skip(actor, ef, log, "unknown status "+ef.Status)
			return
		}
		target, owner := resolveTarget(gs, actor, defaultTarget(ef.Target, card.TargetOpponentActive))
		if target == nil {
			return
		}
		target.ApplyStatus(newStatus(kind, ef.Count))
		log.add(Event{Type: EventStatusApplied, Player: owner, Card: target.Card.Name, Status: kind})

	case card.EffectDiscardEnergy:
		target, owner := resolveTarget(gs, actor, ef.Target)
		if target == nil {
			return
		}
		count := ef.Count
		if count <= 0 {
			count = 1
		}
		discarded := target.DiscardEnergy(ef.EnergyType, count)
		if len(discarded) > 0 {
			log.add(Event{Type: EventEnergyDiscarded, Player: owner, Card: target.Card.Name, Amount: len(discarded)})
		}

	case card.EffectAttachEnergy:
		target, owner := resolveTarget(gs, actor, ef.Target)
		if target == nil {
			return
		}
		count := ef.Count
		if count <= 0 {
			count = 1
		}
		energyType := ef.EnergyType
		if energyType == "" {
			energyType = target.Card.EnergyType
		}
		for i := 0; i < count; i++ {
			target.AttachEnergy(energyType)
		}
		log.add(Event{Type: EventEnergyAttached, Player: owner, Card: target.Card.Name, Amount: count})

	case card.EffectDrawCards:
		p := gs.Player(actor)
		count := ef.Count
		if count <= 0 {
			count = 1
		}
		// Effect draws are "up to": an empty deck stops the draw but is
		// not a deck-out loss. Only the explicit draw action loses.
		for i := 0; i < count; i++ {
			if _, ok := p.drawOne(); !ok {
				break
			}
			log.add(Event{Type: EventCardDrawn, Player: actor})
		}

	case card.EffectForceSwitch:
		opp := gs.Opponent(actor)
		benched := opp.BenchEntities()
		if opp.Active == nil || len(benched) == 0 {
			return
		}
		slot := benched[r.rng.Intn(len(benched))]
		incoming := opp.EntityAt(slot)
		outgoing := opp.Active
		opp.Active = incoming
		opp.setEntity(slot, outgoing)
		log.add(Event{
			Type:        EventSwitched,
			Player:      opp.ID,
			Card:        incoming.Card.Name,
			Slot:        slot,
			Description: fmt.Sprintf("%s was forced into the active spot", incoming.Card.Name),
		})

	default:
		r.skip(actor, ef, log, "unknown effect kind")
	}
}

func (r *Resolver) skip(actor int, ef card.EffectInstruction, log *eventLog, reason string) {
	log.add(Event{
		Type:        EventEffectSkipped,
		Player:      actor,
		Card:        ef.Kind,
		Description: fmt.Sprintf("effect %q skipped (%s)", ef.Kind, reason),
	})
	r.logger.Warn("skipping effect instruction",
		zap.String("kind", ef.Kind),
		zap.String("reason", reason),
		zap.String("raw", ef.Raw),
	)
}

func defaultTarget(target, fallback string) string {
	if target == "" {
		return fallback
	}
	return target
}
