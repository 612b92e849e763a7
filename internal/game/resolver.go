package game

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

// DefaultConfidenceThreshold gates pre-parsed effect execution: any
// instruction below it is informational only.
const DefaultConfidenceThreshold = 0.7

// Resolver validates actions against the current game state and applies
// their effects. Apply never mutates the state it is given: it clones,
// mutates the clone, and hands the original back untouched on failure.
type Resolver struct {
	rng       *rand.Rand
	logger    *zap.Logger
	threshold float64
}

// NewResolver creates a resolver. The rand source drives coin flips;
// inject a seeded source in tests for determinism.
func NewResolver(rng *rand.Rand, logger *zap.Logger) *Resolver {
	return &Resolver{
		rng:       rng,
		logger:    logger,
		threshold: DefaultConfidenceThreshold,
	}
}

// SetConfidenceThreshold overrides the effect-execution gate.
func (r *Resolver) SetConfidenceThreshold(t float64) {
	r.threshold = t
}

// Apply resolves one action. On success it returns the new state and
// the ordered resolution log; on failure it returns the input state
// unchanged and a typed *ActionError.
func (r *Resolver) Apply(gs *GameState, act Action) (*GameState, []Event, error) {
	if gs.Finished() {
		return gs, nil, &ActionError{Code: CodeGameFinished, Reason: "battle already finished"}
	}
	if p := gs.Player(act.Actor()); p == nil {
		return gs, nil, errInvalidTarget("no such player %d", act.Actor())
	}

	next := gs.Clone()
	log := &eventLog{}

	var err error
	switch a := act.(type) {
	case PlayPokemon:
		err = r.applyPlayPokemon(next, a, log)
	case PlayTrainer:
		err = r.applyPlayTrainer(next, a, log)
	case AttachEnergy:
		err = r.applyAttachEnergy(next, a, log)
	case Attack:
		err = r.applyAttack(next, a, log)
	case UseAbility:
		err = r.applyUseAbility(next, a, log)
	case Switch:
		err = r.applySwitch(next, a, log)
	case DrawCard:
		err = r.applyDrawCard(next, a, log)
	case PassTurn:
		err = r.applyPassTurn(next, a, log)
	case SetupReady:
		err = r.applySetupReady(next, a, log)
	default:
		err = errIllegal("unsupported action kind %q", act.Kind())
	}
	if err != nil {
		return gs, nil, err
	}

	if err := next.CheckInvariants(); err != nil {
		return gs, nil, err
	}
	return next, log.events, nil
}

// requireTurn rejects turn-consuming actions from the non-current player
// and anything outside the Main phase.
func (r *Resolver) requireTurn(gs *GameState, actor int) error {
	if actor != gs.CurrentPlayer {
		return errNotYourTurn(actor, gs.CurrentPlayer)
	}
	if gs.Phase != PhaseMain {
		return errWrongPhase(gs.Phase, PhaseMain.String())
	}
	return nil
}

func (r *Resolver) applyPlayPokemon(gs *GameState, a PlayPokemon, log *eventLog) error {
	p := gs.Player(a.Player)

	// During Setup both players place basics on their own board; after
	// Setup this is a Main-phase action for the current player.
	if gs.Phase != PhaseSetup {
		if err := r.requireTurn(gs, a.Player); err != nil {
			return err
		}
	}

	if a.HandIndex < 0 || a.HandIndex >= len(p.Hand) {
		return errNoTarget("hand index %d out of range", a.HandIndex)
	}
	c := p.Hand[a.HandIndex]
	if c.Kind != card.KindPokemon {
		return errIllegal("%s is not a Pokémon card", c.Name)
	}
	if !a.Slot.Valid() {
		return errInvalidTarget("slot %d does not exist", a.Slot)
	}

	occupant := p.EntityAt(a.Slot)

	if c.IsBasic() {
		if occupant != nil {
			return errIllegal("slot %d is occupied", a.Slot)
		}
		p.removeFromHand(a.HandIndex)
		p.setEntity(a.Slot, NewBattleEntity(c))
		log.add(Event{Type: EventCardPlayed, Player: a.Player, Card: c.Name, Slot: a.Slot})
		gs.maybeFinishSetup(log)
		return nil
	}

	// Evolution: requires the prior stage in that slot, not during Setup.
	if gs.Phase == PhaseSetup {
		return errIllegal("cannot evolve during setup")
	}
	if occupant == nil {
		return errNoTarget("slot %d is empty, cannot evolve", a.Slot)
	}
	if occupant.Card.Name != c.EvolvesFrom {
		return errIllegal("%s evolves from %s, not %s", c.Name, c.EvolvesFrom, occupant.Card.Name)
	}

	p.removeFromHand(a.HandIndex)
	evolved := NewBattleEntity(c)
	// Evolving preserves damage and attached energy; the lower stage
	// card goes to the discard pile. Statuses are cured on evolution.
	evolved.Energy = occupant.Energy
	evolved.DamageTaken = occupant.DamageTaken
	if evolved.DamageTaken > evolved.MaxHP() {
		evolved.DamageTaken = evolved.MaxHP()
	}
	evolved.CurrentHP = evolved.MaxHP() - evolved.DamageTaken
	p.Discard = append(p.Discard, occupant.Card)
	p.setEntity(a.Slot, evolved)
	log.add(Event{Type: EventEvolved, Player: a.Player, Card: c.Name, Slot: a.Slot})

	gs.knockOutSweep(log)
	return nil
}

func (r *Resolver) applyPlayTrainer(gs *GameState, a PlayTrainer, log *eventLog) error {
	if err := r.requireTurn(gs, a.Player); err != nil {
		return err
	}
	p := gs.Player(a.Player)
	if a.HandIndex < 0 || a.HandIndex >= len(p.Hand) {
		return errNoTarget("hand index %d out of range", a.HandIndex)
	}
	c := p.Hand[a.HandIndex]
	if c.Kind != card.KindTrainer {
		return errIllegal("%s is not a trainer card", c.Name)
	}

	p.removeFromHand(a.HandIndex)
	p.Discard = append(p.Discard, c)
	log.add(Event{Type: EventTrainerPlayed, Player: a.Player, Card: c.Name})

	r.runEffects(gs, a.Player, c.Trainer, log)
	gs.knockOutSweep(log)
	return nil
}

func (r *Resolver) applyAttachEnergy(gs *GameState, a AttachEnergy, log *eventLog) error {
	if err := r.requireTurn(gs, a.Player); err != nil {
		return err
	}
	p := gs.Player(a.Player)
	if p.EnergyAttachedThisTurn {
		return errIllegal("energy already attached this turn")
	}
	target := p.EntityAt(a.Slot)
	if target == nil {
		return errNoTarget("slot %d is empty", a.Slot)
	}
	if a.EnergyType == "" {
		return errInvalidTarget("missing energy type")
	}

	target.AttachEnergy(a.EnergyType)
	p.EnergyAttachedThisTurn = true
	log.add(Event{Type: EventEnergyAttached, Player: a.Player, Card: target.Card.Name, Slot: a.Slot})
	return nil
}

// costSatisfied checks the attack cost against attached energy: typed
// requirements consume matching energy, colorless consumes anything left.
func costSatisfied(cost []card.EnergyType, attached []card.EnergyType) bool {
	pool := make(map[card.EnergyType]int)
	for _, e := range attached {
		pool[e]++
	}
	colorless := 0
	for _, c := range cost {
		if c == card.EnergyColorless {
			colorless++
			continue
		}
		if pool[c] == 0 {
			return false
		}
		pool[c]--
	}
	remaining := 0
	for _, n := range pool {
		remaining += n
	}
	return remaining >= colorless
}

func (r *Resolver) applyAttack(gs *GameState, a Attack, log *eventLog) error {
	if err := r.requireTurn(gs, a.Player); err != nil {
		return err
	}
	p := gs.Player(a.Player)
	if p.Active == nil {
		return errNoTarget("no active Pokémon")
	}
	attacker := p.Active
	atk, ok := attacker.Card.FindAttack(a.AttackName)
	if !ok {
		return errNoTarget("%s has no attack named %q", attacker.Card.Name, a.AttackName)
	}
	if attacker.HasStatus(StatusAsleep) {
		return errIllegal("%s is asleep and cannot attack", attacker.Card.Name)
	}
	if attacker.HasStatus(StatusParalyzed) {
		return errIllegal("%s is paralyzed and cannot attack", attacker.Card.Name)
	}
	if !costSatisfied(atk.Cost, attacker.Energy) {
		return errInsufficientEnergy(atk.Name)
	}

	gs.Phase = PhaseAttack
	log.add(Event{Type: EventAttackUsed, Player: a.Player, Card: atk.Name})

	// A confused attacker flips a coin; tails means the attack fizzles
	// but the turn still ends.
	fizzled := false
	if attacker.HasStatus(StatusConfused) {
		heads := r.flip(a.Player, log)
		if !heads {
			fizzled = true
			log.add(Event{
				Type:        EventEffectSkipped,
				Player:      a.Player,
				Card:        atk.Name,
				Description: attacker.Card.Name + " is confused and the attack failed",
			})
		}
	}

	if !fizzled {
		executable, informational := r.splitEffects(atk.Effects)
		damage := atk.Damage
		damage += r.damageModifiers(gs, a.Player, executable, log)

		opponent := gs.Opponent(a.Player)
		if target := opponent.Active; target != nil && damage > 0 {
			if target.Card.Weakness != "" && target.Card.Weakness == attacker.Card.EnergyType {
				damage *= 2
			}
			dealt := target.ApplyDamage(damage)
			log.add(Event{Type: EventDamageDealt, Player: opponent.ID, Card: target.Card.Name, Amount: dealt})
		}

		// Numeric damage first, then the KO sweep, then secondary
		// effects against the post-KO board.
		gs.knockOutSweep(log)
		if gs.Phase != PhaseFinished {
			r.runSecondaryEffects(gs, a.Player, executable, log)
			gs.knockOutSweep(log)
		}
		r.logInformational(a.Player, informational, log)
	}

	if gs.Phase != PhaseFinished {
		gs.endTurn(log)
	}
	return nil
}

func (r *Resolver) applyUseAbility(gs *GameState, a UseAbility, log *eventLog) error {
	if err := r.requireTurn(gs, a.Player); err != nil {
		return err
	}
	p := gs.Player(a.Player)
	entity := p.EntityAt(a.Slot)
	if entity == nil {
		return errNoTarget("slot %d is empty", a.Slot)
	}
	ability, ok := entity.Card.FindAbility(a.AbilityName)
	if !ok {
		return errNoTarget("%s has no ability named %q", entity.Card.Name, a.AbilityName)
	}
	if ability.SingleUse && entity.AbilityUsed(ability.Name) {
		return errIllegal("ability %s already used this turn", ability.Name)
	}

	if ability.SingleUse {
		entity.MarkAbilityUsed(ability.Name)
	}
	log.add(Event{Type: EventAbilityUsed, Player: a.Player, Card: ability.Name, Slot: a.Slot})

	r.runEffects(gs, a.Player, ability.Effects, log)
	gs.knockOutSweep(log)
	return nil
}

func (r *Resolver) applySwitch(gs *GameState, a Switch, log *eventLog) error {
	if err := r.requireTurn(gs, a.Player); err != nil {
		return err
	}
	p := gs.Player(a.Player)
	if !a.BenchSlot.IsBench() {
		return errInvalidTarget("slot %d is not a bench slot", a.BenchSlot)
	}
	incoming := p.EntityAt(a.BenchSlot)
	if incoming == nil {
		return errNoTarget("bench slot %d is empty", a.BenchSlot)
	}

	if p.Active == nil {
		// Free promotion into an empty active slot.
		p.Active = incoming
		p.setEntity(a.BenchSlot, nil)
		log.add(Event{Type: EventPromoted, Player: a.Player, Card: incoming.Card.Name})
		return nil
	}

	outgoing := p.Active
	if outgoing.HasStatus(StatusAsleep) {
		return errIllegal("%s is asleep and cannot retreat", outgoing.Card.Name)
	}
	if outgoing.HasStatus(StatusParalyzed) {
		return errIllegal("%s is paralyzed and cannot retreat", outgoing.Card.Name)
	}
	cost := outgoing.Card.RetreatCost
	if len(outgoing.Energy) < cost {
		return errInsufficientEnergy("retreat")
	}
	if cost > 0 {
		discarded := outgoing.DiscardEnergy(card.EnergyColorless, cost)
		log.add(Event{Type: EventEnergyDiscarded, Player: a.Player, Card: outgoing.Card.Name, Amount: len(discarded)})
	}

	// Retreating to the bench cures the exclusive conditions.
	outgoing.ClearStatus(StatusAsleep)
	outgoing.ClearStatus(StatusParalyzed)
	outgoing.ClearStatus(StatusConfused)

	p.Active = incoming
	p.setEntity(a.BenchSlot, outgoing)
	log.add(Event{Type: EventSwitched, Player: a.Player, Card: incoming.Card.Name, Slot: a.BenchSlot})
	return nil
}

func (r *Resolver) applyDrawCard(gs *GameState, a DrawCard, log *eventLog) error {
	if a.Player != gs.CurrentPlayer {
		return errNotYourTurn(a.Player, gs.CurrentPlayer)
	}
	if gs.Phase != PhaseDraw {
		return errWrongPhase(gs.Phase, PhaseDraw.String())
	}
	p := gs.Player(a.Player)
	if _, ok := p.drawOne(); !ok {
		// Deck-out: the action is accepted, the drawing player loses.
		winner := 1 - a.Player
		log.add(Event{
			Type:        EventCardDrawn,
			Player:      a.Player,
			Description: "deck is empty, cannot draw",
		})
		gs.finish(&winner, false, log)
		return nil
	}
	log.add(Event{Type: EventCardDrawn, Player: a.Player})
	gs.Phase = PhaseMain
	log.add(Event{Type: EventPhaseChanged, Card: gs.Phase.String()})
	return nil
}

func (r *Resolver) applyPassTurn(gs *GameState, a PassTurn, log *eventLog) error {
	if a.Player != gs.CurrentPlayer {
		return errNotYourTurn(a.Player, gs.CurrentPlayer)
	}
	switch gs.Phase {
	case PhaseDraw, PhaseMain, PhaseAttack:
		gs.endTurn(log)
		return nil
	default:
		return errWrongPhase(gs.Phase, "DRAW, MAIN or ATTACK")
	}
}

func (r *Resolver) applySetupReady(gs *GameState, a SetupReady, log *eventLog) error {
	if gs.Phase != PhaseSetup {
		return errWrongPhase(gs.Phase, PhaseSetup.String())
	}
	p := gs.Player(a.Player)
	p.SetupReady = a.Ready
	if a.Ready {
		log.add(Event{Type: EventSetupReady, Player: a.Player})
	}
	gs.maybeFinishSetup(log)
	return nil
}

// flip performs one coin flip and logs it.
func (r *Resolver) flip(player int, log *eventLog) bool {
	heads := r.rng.Intn(2) == 0
	log.add(Event{Type: EventCoinFlip, Player: player, Heads: heads})
	return heads
}
