package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

func newTestResolver() *Resolver {
	return NewResolver(rand.New(rand.NewSource(1)), zap.NewNop())
}

func attackerCard(name string, hp, damage int, cost ...card.EnergyType) *card.Card {
	return &card.Card{
		ID:         "test-" + name,
		Name:       name,
		Kind:       card.KindPokemon,
		EnergyType: card.EnergyFire,
		HP:         hp,
		Attacks: []card.Attack{
			{Name: "Strike", Cost: cost, Damage: damage},
		},
	}
}

// setupBattle builds a Main-phase battle with one active entity per
// player and enough energy to attack.
func setupBattle(t *testing.T, p0, p1 *card.Card) *GameState {
	t.Helper()
	gs := NewGameState("battle-test")
	gs.Players[0].Active = NewBattleEntity(p0)
	gs.Players[1].Active = NewBattleEntity(p1)
	gs.Phase = PhaseMain
	gs.TurnNumber = 1
	gs.CurrentPlayer = 0
	return gs
}

func TestSetupTransition(t *testing.T) {
	r := newTestResolver()
	gs := NewGameState("battle-setup")
	basic0 := attackerCard("Charmander", 60, 30, card.EnergyFire)
	basic1 := attackerCard("Squirtle", 60, 20, card.EnergyWater)
	gs.Players[0].Hand = []*card.Card{basic0}
	gs.Players[1].Hand = []*card.Card{basic1}

	gs, _, err := r.Apply(gs, PlayPokemon{Player: 0, HandIndex: 0, Slot: SlotActive})
	require.NoError(t, err)
	gs, _, err = r.Apply(gs, PlayPokemon{Player: 1, HandIndex: 0, Slot: SlotActive})
	require.NoError(t, err)

	// One player ready: still Setup.
	gs, _, err = r.Apply(gs, SetupReady{Player: 0, Ready: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseSetup, gs.Phase)
	assert.Equal(t, 0, gs.TurnNumber)

	// Both ready with actives: battle begins.
	gs, events, err := r.Apply(gs, SetupReady{Player: 1, Ready: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseDraw, gs.Phase)
	assert.Equal(t, 1, gs.TurnNumber)
	assert.Equal(t, 0, gs.CurrentPlayer)

	var sawTurnBegan bool
	for _, ev := range events {
		if ev.Type == EventTurnBegan {
			sawTurnBegan = true
		}
	}
	assert.True(t, sawTurnBegan, "expected a TURN_BEGAN event")
}

func TestSetupReadyWithoutActiveDoesNotStart(t *testing.T) {
	r := newTestResolver()
	gs := NewGameState("battle-setup")

	gs, _, err := r.Apply(gs, SetupReady{Player: 0, Ready: true})
	require.NoError(t, err)
	gs, _, err = r.Apply(gs, SetupReady{Player: 1, Ready: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseSetup, gs.Phase, "no actives placed, setup must not complete")
}

func TestAttackSequenceToKnockOut(t *testing.T) {
	r := newTestResolver()
	// 30-damage attacker vs 60 HP target: two attacks knock out.
	atk0 := attackerCard("Charmander", 60, 30, card.EnergyFire)
	atk1 := attackerCard("Squirtle", 60, 40, card.EnergyWater)
	atk1.Attacks[0].Cost = []card.EnergyType{card.EnergyWater}
	gs := setupBattle(t, atk0, atk1)
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)
	gs.Players[1].Active.AttachEnergy(card.EnergyWater)
	// Bench so the KO'd side can promote instead of losing outright.
	gs.Players[0].Bench[0] = NewBattleEntity(attackerCard("Pidgey", 50, 10))

	// Player 0 attacks for 30.
	gs, _, err := r.Apply(gs, Attack{Player: 0, AttackName: "Strike"})
	require.NoError(t, err)
	assert.Equal(t, 30, gs.Players[1].Active.CurrentHP)
	assert.Equal(t, 1, gs.CurrentPlayer, "attack ends the turn")
	assert.Equal(t, PhaseDraw, gs.Phase)

	// Player 1 attacks for 40 into the untouched 60 HP Charmander.
	gs.Phase = PhaseMain
	gs, _, err = r.Apply(gs, Attack{Player: 1, AttackName: "Strike"})
	require.NoError(t, err)

	// 60 - 40 = 20 left on player 0's active.
	assert.Equal(t, 20, gs.Players[0].Active.CurrentHP)
	assert.Equal(t, 0, gs.CurrentPlayer)

	// Second 40-damage attack knocks out and awards a prize.
	gs.Phase = PhaseMain
	gs.CurrentPlayer = 1
	gs, events, err := r.Apply(gs, Attack{Player: 1, AttackName: "Strike"})
	require.NoError(t, err)

	assert.Equal(t, 1, gs.Players[1].PrizePoints)
	assert.Equal(t, "Pidgey", gs.Players[0].Active.Card.Name, "bench entity promoted")

	var sawKO, sawPrize bool
	for _, ev := range events {
		if ev.Type == EventKnockOut {
			sawKO = true
		}
		if ev.Type == EventPrizeAwarded {
			sawPrize = true
		}
	}
	assert.True(t, sawKO)
	assert.True(t, sawPrize)
}

func TestKnockOutOfExAwardsTwoPrizes(t *testing.T) {
	r := newTestResolver()
	ex := attackerCard("Moltres ex", 40, 10, card.EnergyFire)
	ex.IsEx = true
	atk := attackerCard("Squirtle", 60, 50, card.EnergyWater)
	atk.Attacks[0].Cost = []card.EnergyType{card.EnergyWater}
	gs := setupBattle(t, atk, ex)
	gs.Players[0].Active.AttachEnergy(card.EnergyWater)
	gs.Players[1].Bench[0] = NewBattleEntity(attackerCard("Pidgey", 50, 10))

	gs, _, err := r.Apply(gs, Attack{Player: 0, AttackName: "Strike"})
	require.NoError(t, err)
	assert.Equal(t, 2, gs.Players[0].PrizePoints)
}

func TestWeaknessDoublesDamage(t *testing.T) {
	r := newTestResolver()
	atk := attackerCard("Charmander", 60, 20, card.EnergyFire) // fire attacker
	target := attackerCard("Bulbasaur", 100, 10, card.EnergyGrass)
	target.Weakness = card.EnergyFire
	gs := setupBattle(t, atk, target)
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)

	gs, _, err := r.Apply(gs, Attack{Player: 0, AttackName: "Strike"})
	require.NoError(t, err)
	assert.Equal(t, 60, gs.Players[1].Active.CurrentHP, "20 base doubled to 40 by weakness")
}

func TestAttackRequiresEnergy(t *testing.T) {
	r := newTestResolver()
	atk := attackerCard("Charmander", 60, 30, card.EnergyFire, card.EnergyColorless)
	gs := setupBattle(t, atk, attackerCard("Squirtle", 60, 20))
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)
	// Cost is fire+colorless, only one fire attached.

	before := gs
	after, _, err := r.Apply(gs, Attack{Player: 0, AttackName: "Strike"})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeInsufficientEnergy, actionErr.Code)
	assert.Same(t, before, after, "failed action must return the input state")
}

func TestColorlessSatisfiedByAnyEnergy(t *testing.T) {
	assert.True(t, costSatisfied(
		[]card.EnergyType{card.EnergyFire, card.EnergyColorless},
		[]card.EnergyType{card.EnergyFire, card.EnergyPsychic},
	))
	assert.False(t, costSatisfied(
		[]card.EnergyType{card.EnergyFire, card.EnergyFire},
		[]card.EnergyType{card.EnergyFire, card.EnergyPsychic},
	))
	assert.True(t, costSatisfied(nil, nil))
}

func TestAttachEnergyOncePerTurn(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))

	gs, _, err := r.Apply(gs, AttachEnergy{Player: 0, Slot: SlotActive, EnergyType: card.EnergyFire})
	require.NoError(t, err)
	assert.True(t, gs.Players[0].EnergyAttachedThisTurn)

	before := gs
	after, _, err := r.Apply(gs, AttachEnergy{Player: 0, Slot: SlotActive, EnergyType: card.EnergyFire})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeIllegalAction, actionErr.Code)
	assert.Same(t, before, after)
	assert.Len(t, after.Players[0].Active.Energy, 1)

	// The flag resets after the turn comes back around.
	gs, _, err = r.Apply(gs, PassTurn{Player: 0})
	require.NoError(t, err)
	gs, _, err = r.Apply(gs, PassTurn{Player: 1})
	require.NoError(t, err)
	assert.False(t, gs.Players[0].EnergyAttachedThisTurn)
	gs.Phase = PhaseMain
	_, _, err = r.Apply(gs, AttachEnergy{Player: 0, Slot: SlotActive, EnergyType: card.EnergyFire})
	assert.NoError(t, err)
}

func TestSingleUseAbilityTrackedPerCopy(t *testing.T) {
	r := newTestResolver()
	chansey := attackerCard("Chansey", 100, 10, card.EnergyFire)
	chansey.Abilities = []card.Ability{{
		Name:      "Soothe",
		SingleUse: true,
		Effects:   []card.EffectInstruction{{Kind: card.EffectHeal, Amount: 10, Confidence: 1}},
	}}
	gs := setupBattle(t, chansey, attackerCard("Squirtle", 60, 20, card.EnergyWater))
	gs.Players[0].Bench[0] = NewBattleEntity(chansey)

	gs, _, err := r.Apply(gs, UseAbility{Player: 0, Slot: SlotActive, AbilityName: "Soothe"})
	require.NoError(t, err)

	// The active's use does not consume the bench copy's.
	gs, _, err = r.Apply(gs, UseAbility{Player: 0, Slot: Slot(1), AbilityName: "Soothe"})
	require.NoError(t, err)

	before := gs
	after, _, err := r.Apply(gs, UseAbility{Player: 0, Slot: SlotActive, AbilityName: "Soothe"})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeIllegalAction, actionErr.Code)
	assert.Same(t, before, after)

	// Both uses come back once the turn cycles around.
	gs, _, err = r.Apply(gs, PassTurn{Player: 0})
	require.NoError(t, err)
	gs, _, err = r.Apply(gs, PassTurn{Player: 1})
	require.NoError(t, err)
	gs.Phase = PhaseMain
	assert.False(t, gs.Players[0].Active.AbilityUsed("Soothe"))
	_, _, err = r.Apply(gs, UseAbility{Player: 0, Slot: SlotActive, AbilityName: "Soothe"})
	assert.NoError(t, err)
}

func TestNotYourTurn(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))

	before := gs
	after, _, err := r.Apply(gs, AttachEnergy{Player: 1, Slot: SlotActive, EnergyType: card.EnergyWater})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeNotYourTurn, actionErr.Code)
	assert.Same(t, before, after)
}

func TestDeckOutLosesBattle(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Phase = PhaseDraw
	respondent := gs.Players[0]
	require.Empty(t, respondent.Deck)

	gs, events, err := r.Apply(gs, DrawCard{Player: 0})
	require.NoError(t, err, "deck-out is a resolution, not a rejection")
	assert.Equal(t, PhaseFinished, gs.Phase)
	require.NotNil(t, gs.Winner)
	assert.Equal(t, 1, *gs.Winner)

	var sawEnd bool
	for _, ev := range events {
		if ev.Type == EventGameEnded {
			sawEnd = true
		}
	}
	assert.True(t, sawEnd)
}

func TestDrawCardMovesTopOfDeck(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Phase = PhaseDraw
	top := attackerCard("Pidgey", 50, 10)
	gs.Players[0].Deck = []*card.Card{top, attackerCard("Rattata", 40, 10)}

	gs, _, err := r.Apply(gs, DrawCard{Player: 0})
	require.NoError(t, err)
	require.Len(t, gs.Players[0].Hand, 1)
	assert.Equal(t, "Pidgey", gs.Players[0].Hand[0].Name)
	assert.Len(t, gs.Players[0].Deck, 1)
	assert.Equal(t, PhaseMain, gs.Phase)
}

func TestEvolutionPreservesDamageAndEnergy(t *testing.T) {
	r := newTestResolver()
	basic := attackerCard("Charmander", 60, 30, card.EnergyFire)
	evolved := attackerCard("Charmeleon", 90, 50, card.EnergyFire)
	evolved.Stage = 1
	evolved.EvolvesFrom = "Charmander"

	gs := setupBattle(t, basic, attackerCard("Squirtle", 60, 20))
	gs.Players[0].Active.ApplyDamage(20)
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)
	gs.Players[0].Hand = []*card.Card{evolved}

	gs, _, err := r.Apply(gs, PlayPokemon{Player: 0, HandIndex: 0, Slot: SlotActive})
	require.NoError(t, err)

	active := gs.Players[0].Active
	assert.Equal(t, "Charmeleon", active.Card.Name)
	assert.Equal(t, 70, active.CurrentHP, "90 max minus 20 carried damage")
	assert.Len(t, active.Energy, 1, "energy carried over")
	require.Len(t, gs.Players[0].Discard, 1)
	assert.Equal(t, "Charmander", gs.Players[0].Discard[0].Name)
}

func TestEvolutionRequiresMatchingPriorStage(t *testing.T) {
	r := newTestResolver()
	evolved := attackerCard("Charmeleon", 90, 50, card.EnergyFire)
	evolved.Stage = 1
	evolved.EvolvesFrom = "Charmander"

	gs := setupBattle(t, attackerCard("Squirtle", 60, 20), attackerCard("Squirtle", 60, 20))
	gs.Players[0].Hand = []*card.Card{evolved}

	before := gs
	after, _, err := r.Apply(gs, PlayPokemon{Player: 0, HandIndex: 0, Slot: SlotActive})
	require.Error(t, err)
	assert.Same(t, before, after)
}

func TestSwitchPaysRetreatCost(t *testing.T) {
	r := newTestResolver()
	active := attackerCard("Charmander", 60, 30)
	active.RetreatCost = 1
	gs := setupBattle(t, active, attackerCard("Squirtle", 60, 20))
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)
	gs.Players[0].Bench[0] = NewBattleEntity(attackerCard("Pidgey", 50, 10))

	gs, _, err := r.Apply(gs, Switch{Player: 0, BenchSlot: 1})
	require.NoError(t, err)
	assert.Equal(t, "Pidgey", gs.Players[0].Active.Card.Name)
	benched := gs.Players[0].Bench[0]
	require.NotNil(t, benched)
	assert.Equal(t, "Charmander", benched.Card.Name)
	assert.Len(t, benched.Energy, 1, "one energy discarded for retreat")
}

func TestSwitchRejectedWithoutRetreatEnergy(t *testing.T) {
	r := newTestResolver()
	active := attackerCard("Snorlax", 120, 30)
	active.RetreatCost = 2
	gs := setupBattle(t, active, attackerCard("Squirtle", 60, 20))
	gs.Players[0].Bench[0] = NewBattleEntity(attackerCard("Pidgey", 50, 10))

	before := gs
	after, _, err := r.Apply(gs, Switch{Player: 0, BenchSlot: 1})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeInsufficientEnergy, actionErr.Code)
	assert.Same(t, before, after)
}

func TestEndOfTurnStatusDamageThenSingleKOSweep(t *testing.T) {
	r := newTestResolver()
	// Both actives burned+poisoned at 20 HP: both die in the same
	// checkup, which must resolve as a tie, not a win for either side.
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	for _, p := range gs.Players {
		p.Active.SetHP(20)
		p.Active.ApplyStatus(newStatus(StatusBurned, 0))
		p.Active.ApplyStatus(newStatus(StatusPoisoned, 0))
	}

	gs, _, err := r.Apply(gs, PassTurn{Player: 0})
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, gs.Phase)
	assert.True(t, gs.IsTie)
	assert.Nil(t, gs.Winner)
}

func TestStatusDamageAppliedAtEndOfTurn(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Players[1].Active.ApplyStatus(newStatus(StatusPoisoned, 0))

	gs, events, err := r.Apply(gs, PassTurn{Player: 0})
	require.NoError(t, err)
	assert.Equal(t, 50, gs.Players[1].Active.CurrentHP, "10 poison damage at checkup")

	var sawStatusDamage bool
	for _, ev := range events {
		if ev.Type == EventDamageDealt && ev.Status == StatusPoisoned {
			sawStatusDamage = true
		}
	}
	assert.True(t, sawStatusDamage)
}

func TestAsleepActiveCannotAttack(t *testing.T) {
	r := newTestResolver()
	atk := attackerCard("Charmander", 60, 30, card.EnergyFire)
	gs := setupBattle(t, atk, attackerCard("Squirtle", 60, 20))
	gs.Players[0].Active.AttachEnergy(card.EnergyFire)
	gs.Players[0].Active.ApplyStatus(newStatus(StatusAsleep, 1))

	_, _, err := r.Apply(gs, Attack{Player: 0, AttackName: "Strike"})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeIllegalAction, actionErr.Code)
}

func TestPrizePointsMonotonicAndWinAtThree(t *testing.T) {
	r := newTestResolver()
	atk := attackerCard("Zapdos", 130, 100, card.EnergyLightning)
	gs := setupBattle(t, atk, attackerCard("Squirtle", 60, 20))
	gs.Players[0].Active.AttachEnergy(card.EnergyLightning)
	gs.Players[0].PrizePoints = 2

	gs, _, err := r.Apply(gs, Attack{Player: 0, AttackName: "Strike"})
	require.NoError(t, err)
	assert.Equal(t, 3, gs.Players[0].PrizePoints)
	assert.Equal(t, PhaseFinished, gs.Phase)
	require.NotNil(t, gs.Winner)
	assert.Equal(t, 0, *gs.Winner)
}

func TestActionsRejectedAfterFinish(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	winner := 0
	gs.finish(&winner, false, nil)

	_, _, err := r.Apply(gs, PassTurn{Player: 0})
	require.Error(t, err)
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, CodeGameFinished, actionErr.Code)
}

func TestHPInvariantHoldsAcrossLegalSequences(t *testing.T) {
	r := newTestResolver()
	atk0 := attackerCard("Charmander", 60, 30, card.EnergyFire)
	atk1 := attackerCard("Squirtle", 60, 20, card.EnergyWater)
	atk1.Attacks[0].Cost = []card.EnergyType{card.EnergyWater}
	gs := setupBattle(t, atk0, atk1)
	gs.Players[0].Bench[0] = NewBattleEntity(attackerCard("Pidgey", 50, 10))
	gs.Players[1].Bench[0] = NewBattleEntity(attackerCard("Rattata", 40, 10))

	actions := []Action{
		AttachEnergy{Player: 0, Slot: SlotActive, EnergyType: card.EnergyFire},
		Attack{Player: 0, AttackName: "Strike"},
		AttachEnergy{Player: 1, Slot: SlotActive, EnergyType: card.EnergyWater},
		Attack{Player: 1, AttackName: "Strike"},
	}
	for _, act := range actions {
		if gs.Phase == PhaseDraw {
			gs.Phase = PhaseMain
		}
		next, _, err := r.Apply(gs, act)
		require.NoError(t, err)
		require.NoError(t, next.CheckInvariants())
		gs = next
	}
}
