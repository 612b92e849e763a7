package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

func newTestSandbox() *Sandbox {
	return NewSandbox(zap.NewNop())
}

func TestSandboxPlaceCardIgnoresTurnAndPhase(t *testing.T) {
	sb := newTestSandbox()
	gs := NewGameState("sandbox-test")

	// Setup phase, and targeting the non-acting player: both fine here.
	c := attackerCard("Charmander", 60, 30)
	events, err := sb.PlaceCard(gs, 1, c, Slot(2), false)
	require.NoError(t, err)
	require.NotNil(t, gs.Players[1].Bench[1])
	assert.Equal(t, "Charmander", gs.Players[1].Bench[1].Card.Name)

	require.Len(t, events, 1)
	assert.True(t, events[0].Sandbox, "sandbox events must be tagged")
}

func TestSandboxPlaceCardReplacesOccupant(t *testing.T) {
	sb := newTestSandbox()
	gs := NewGameState("sandbox-test")
	gs.Players[0].Active = NewBattleEntity(attackerCard("Squirtle", 60, 20))

	_, err := sb.PlaceCard(gs, 0, attackerCard("Charmander", 60, 30), SlotActive, false)
	require.NoError(t, err)
	assert.Equal(t, "Charmander", gs.Players[0].Active.Card.Name)
	require.Len(t, gs.Players[0].Discard, 1)
	assert.Equal(t, "Squirtle", gs.Players[0].Discard[0].Name)
}

func TestSandboxPlaceCardToHand(t *testing.T) {
	sb := newTestSandbox()
	gs := NewGameState("sandbox-test")

	trainer := &card.Card{ID: "t1", Name: "Potion", Kind: card.KindTrainer}
	_, err := sb.PlaceCard(gs, 0, trainer, 0, true)
	require.NoError(t, err)
	require.Len(t, gs.Players[0].Hand, 1)
	assert.Equal(t, "Potion", gs.Players[0].Hand[0].Name)
}

func TestSandboxSetHPZeroKnocksOutBenchEntity(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Players[1].Bench[0] = NewBattleEntity(attackerCard("Rattata", 40, 10))
	gs.CurrentPlayer = 0 // not player 1's turn; the sandbox does not care

	events, err := sb.SetHP(gs, 1, Slot(1), 0)
	require.NoError(t, err)

	// Bench KO resolves like any other: discard plus prize award.
	assert.Nil(t, gs.Players[1].Bench[0])
	assert.Equal(t, 1, gs.Players[0].PrizePoints)
	require.Len(t, gs.Players[1].Discard, 1)
	assert.Equal(t, "Rattata", gs.Players[1].Discard[0].Name)

	var sawKO bool
	for _, ev := range events {
		assert.True(t, ev.Sandbox)
		if ev.Type == EventKnockOut {
			sawKO = true
		}
	}
	assert.True(t, sawKO)
	require.NoError(t, gs.CheckInvariants())
}

func TestSandboxSetHPRederivesDamage(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))

	_, err := sb.SetHP(gs, 0, SlotActive, 15)
	require.NoError(t, err)
	active := gs.Players[0].Active
	assert.Equal(t, 15, active.CurrentHP)
	assert.Equal(t, 45, active.DamageTaken)
	require.NoError(t, active.CheckInvariants())
}

func TestSandboxApplyStatusSkipsExclusivity(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))

	_, err := sb.ApplyStatus(gs, 0, SlotActive, StatusAsleep, 0)
	require.NoError(t, err)
	_, err = sb.ApplyStatus(gs, 0, SlotActive, StatusParalyzed, 0)
	require.NoError(t, err)

	active := gs.Players[0].Active
	assert.True(t, active.HasStatus(StatusAsleep))
	assert.True(t, active.HasStatus(StatusParalyzed), "sandbox stacks exclusive conditions")
}

func TestSandboxApplyStatusRejectsUnknownKind(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))

	_, err := sb.ApplyStatus(gs, 0, SlotActive, StatusKind("FROZEN"), 0)
	require.Error(t, err)
}

func TestSandboxClearStatus(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Players[0].Active.ApplyStatus(newStatus(StatusBurned, 0))

	events, err := sb.ClearStatus(gs, 0, SlotActive, StatusBurned)
	require.NoError(t, err)
	assert.False(t, gs.Players[0].Active.HasStatus(StatusBurned))
	require.Len(t, events, 1)
	assert.Equal(t, EventStatusCleared, events[0].Type)

	// Clearing an absent condition emits nothing.
	events, err = sb.ClearStatus(gs, 0, SlotActive, StatusBurned)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSandboxAttachEnergyIgnoresPerTurnLimit(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Players[0].EnergyAttachedThisTurn = true

	_, err := sb.AttachEnergy(gs, 0, SlotActive, card.EnergyFire, 3)
	require.NoError(t, err)
	assert.Len(t, gs.Players[0].Active.Energy, 3)
}

func TestSandboxRemoveEntityAwardsNoPrize(t *testing.T) {
	sb := newTestSandbox()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	gs.Players[1].Bench[0] = NewBattleEntity(attackerCard("Rattata", 40, 10))

	events, err := sb.RemoveEntity(gs, 1, SlotActive)
	require.NoError(t, err)

	assert.Equal(t, 0, gs.Players[0].PrizePoints, "removal is not a knock-out")
	assert.Equal(t, "Rattata", gs.Players[1].Active.Card.Name, "bench promoted into the gap")

	var sawRemoved, sawPromoted bool
	for _, ev := range events {
		if ev.Type == EventEntityRemoved {
			sawRemoved = true
		}
		if ev.Type == EventPromoted {
			sawPromoted = true
		}
	}
	assert.True(t, sawRemoved)
	assert.True(t, sawPromoted)
}

func TestSandboxErrorsOnEmptySlot(t *testing.T) {
	sb := newTestSandbox()
	gs := NewGameState("sandbox-test")

	_, err := sb.SetHP(gs, 0, SlotActive, 10)
	require.Error(t, err)
	_, err = sb.AttachEnergy(gs, 0, Slot(2), card.EnergyFire, 1)
	require.Error(t, err)
	_, err = sb.RemoveEntity(gs, 1, Slot(3))
	require.Error(t, err)
}
