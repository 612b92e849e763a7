package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptcgsim/battle-server-go/internal/card"
)

func recordedReplay(t *testing.T) *Replay {
	t.Helper()
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	replay := NewReplay(gs.BattleID)

	actions := []Action{
		AttachEnergy{Player: 0, Slot: SlotActive, EnergyType: card.EnergyFire},
		PassTurn{Player: 0},
	}
	for _, act := range actions {
		next, events, err := r.Apply(gs, act)
		require.NoError(t, err)
		replay.Record(act, events, next)
		gs = next
	}
	return replay
}

func TestReplayRecordsSteps(t *testing.T) {
	replay := recordedReplay(t)
	require.Equal(t, 2, replay.Size())

	assert.Equal(t, ActionAttachEnergy, replay.Steps[0].ActionKind)
	assert.Equal(t, ActionPassTurn, replay.Steps[1].ActionKind)
	assert.Equal(t, 0, replay.Steps[0].Index)
	assert.Equal(t, 1, replay.Steps[1].Index)

	// Snapshots are frozen at record time.
	assert.Equal(t, 0, replay.Steps[0].State.CurrentPlayer)
	assert.Equal(t, 1, replay.Steps[1].State.CurrentPlayer)
}

func TestReplaySnapshotIsolation(t *testing.T) {
	r := newTestResolver()
	gs := setupBattle(t, attackerCard("Charmander", 60, 30), attackerCard("Squirtle", 60, 20))
	replay := NewReplay(gs.BattleID)

	act := AttachEnergy{Player: 0, Slot: SlotActive, EnergyType: card.EnergyFire}
	next, events, err := r.Apply(gs, act)
	require.NoError(t, err)
	replay.Record(act, events, next)

	// Mutating the live state must not change the recorded snapshot.
	next.Players[0].Active.ApplyDamage(50)
	assert.Equal(t, 60, replay.Steps[0].State.Players[0].Active.CurrentHP)
}

func TestReplayCursorNavigation(t *testing.T) {
	replay := recordedReplay(t)
	replay.Start()

	first := replay.Next()
	require.NotNil(t, first)
	assert.Equal(t, 0, first.Index)

	second := replay.Next()
	require.NotNil(t, second)
	assert.Equal(t, 1, second.Index)
	assert.Nil(t, replay.Next(), "past the end")

	back := replay.Previous()
	require.NotNil(t, back)
	assert.Equal(t, 1, back.Index)
	replay.Previous()
	assert.Nil(t, replay.Previous(), "before the beginning")
}

func TestReplaySaveAndLoad(t *testing.T) {
	replay := recordedReplay(t)
	dir := t.TempDir()

	path, err := replay.Save(dir)
	require.NoError(t, err)

	loaded, err := LoadReplay(path)
	require.NoError(t, err)
	assert.Equal(t, replay.BattleID, loaded.BattleID)
	require.Equal(t, replay.Size(), loaded.Size())
	assert.Equal(t, ActionAttachEnergy, loaded.Steps[0].ActionKind)
	require.NotNil(t, loaded.Steps[1].State)
	assert.Equal(t, 1, loaded.Steps[1].State.CurrentPlayer)
	assert.Equal(t, 2, loaded.Steps[1].State.TurnNumber)
}

func TestLoadReplayMissingFile(t *testing.T) {
	_, err := LoadReplay(t.TempDir() + "/absent.replay.json.gz")
	require.Error(t, err)
}
