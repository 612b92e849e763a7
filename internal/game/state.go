package game

import (
	"fmt"
)

// Phase is the coarse turn phase of a battle.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseDraw
	PhaseMain
	PhaseAttack
	PhaseEnd
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhaseSetup:    "SETUP",
	PhaseDraw:     "DRAW",
	PhaseMain:     "MAIN",
	PhaseAttack:   "ATTACK",
	PhaseEnd:      "END",
	PhaseFinished: "FINISHED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// GameState is the authoritative state of one battle. It is owned by the
// session for its battle ID and mutated only through the resolver or the
// sandbox.
type GameState struct {
	BattleID      string          `json:"battle_id"`
	TurnNumber    int             `json:"turn_number"`
	CurrentPlayer int             `json:"current_player"`
	Phase         Phase           `json:"phase"`
	Players       [2]*PlayerState `json:"players"`
	Winner        *int            `json:"winner"`
	IsTie         bool            `json:"is_tie"`
}

// NewGameState creates an empty Setup-phase battle.
func NewGameState(battleID string) *GameState {
	return &GameState{
		BattleID: battleID,
		Phase:    PhaseSetup,
		Players:  [2]*PlayerState{NewPlayerState(0), NewPlayerState(1)},
	}
}

// Player returns the player state for the index, or nil if out of range.
func (gs *GameState) Player(idx int) *PlayerState {
	if idx < 0 || idx > 1 {
		return nil
	}
	return gs.Players[idx]
}

// Opponent returns the other player's state.
func (gs *GameState) Opponent(idx int) *PlayerState {
	return gs.Players[1-idx]
}

// Finished reports whether the battle reached its terminal phase.
func (gs *GameState) Finished() bool {
	return gs.Phase == PhaseFinished
}

// Clone deep-copies the state. Card pointers are shared; they are
// immutable master data.
func (gs *GameState) Clone() *GameState {
	cp := &GameState{
		BattleID:      gs.BattleID,
		TurnNumber:    gs.TurnNumber,
		CurrentPlayer: gs.CurrentPlayer,
		Phase:         gs.Phase,
		IsTie:         gs.IsTie,
	}
	cp.Players[0] = gs.Players[0].Clone()
	cp.Players[1] = gs.Players[1].Clone()
	if gs.Winner != nil {
		w := *gs.Winner
		cp.Winner = &w
	}
	return cp
}

// CheckInvariants validates the whole state. A non-nil error signals an
// unrecoverable fault: the owning session must terminate.
func (gs *GameState) CheckInvariants() error {
	for _, p := range gs.Players {
		if err := p.CheckInvariants(); err != nil {
			return err
		}
		if p.PrizePoints < 0 || p.PrizePoints > PrizePointsToWin {
			return fmt.Errorf("%w: player %d prize_points %d out of range",
				ErrInvariantViolation, p.ID, p.PrizePoints)
		}
	}
	finished := gs.Phase == PhaseFinished
	resolved := gs.Winner != nil || gs.IsTie
	if finished != resolved {
		return fmt.Errorf("%w: phase %s with winner=%v tie=%v",
			ErrInvariantViolation, gs.Phase, gs.Winner, gs.IsTie)
	}
	return nil
}

// maybeFinishSetup fires the Setup transition once both players are
// ready with a non-empty active slot. Turn 1 belongs to player 0.
func (gs *GameState) maybeFinishSetup(log *eventLog) {
	if gs.Phase != PhaseSetup {
		return
	}
	for _, p := range gs.Players {
		if !p.SetupReady || p.Active == nil {
			return
		}
	}
	gs.TurnNumber = 1
	gs.CurrentPlayer = 0
	gs.Phase = PhaseDraw
	gs.Players[0].beginTurn()
	log.add(Event{Type: EventPhaseChanged, Card: gs.Phase.String()})
	log.add(Event{Type: EventTurnBegan, Player: 0, Amount: 1})
}

// finish moves the battle to its terminal phase.
func (gs *GameState) finish(winner *int, tie bool, log *eventLog) {
	if gs.Phase == PhaseFinished {
		return
	}
	gs.Phase = PhaseFinished
	gs.Winner = winner
	gs.IsTie = tie
	if log != nil {
		ev := Event{Type: EventGameEnded}
		if tie {
			ev.Description = "the battle ended in a tie"
		} else if winner != nil {
			ev.Player = *winner
			ev.Description = fmt.Sprintf("player %d won the battle", *winner)
		}
		log.add(ev)
	}
}

// evaluateWinConditions checks prize points and board presence for both
// players. A simultaneous double-loss is a tie.
func (gs *GameState) evaluateWinConditions(log *eventLog) {
	if gs.Phase == PhaseFinished || gs.Phase == PhaseSetup {
		return
	}

	lost := [2]bool{}
	won := [2]bool{}
	for i, p := range gs.Players {
		if p.PrizePoints >= PrizePointsToWin {
			won[i] = true
		}
		if !p.HasBoardPresence() {
			lost[i] = true
		}
	}

	switch {
	case won[0] && won[1], lost[0] && lost[1]:
		gs.finish(nil, true, log)
	case won[0] || lost[1]:
		winner := 0
		gs.finish(&winner, false, log)
	case won[1] || lost[0]:
		winner := 1
		gs.finish(&winner, false, log)
	}
}

// promoteIfNeeded fills an empty active slot from the bench. The first
// occupied bench slot is promoted; a follow-up switch lets the player
// rearrange. Returns false when no promotion was possible.
func (gs *GameState) promoteIfNeeded(idx int, log *eventLog) bool {
	p := gs.Players[idx]
	if p.Active != nil {
		return true
	}
	benched := p.BenchEntities()
	if len(benched) == 0 {
		return false
	}
	slot := benched[0]
	p.Active = p.EntityAt(slot)
	p.setEntity(slot, nil)
	log.add(Event{Type: EventPromoted, Player: idx, Card: p.Active.Card.Name})
	return true
}

// knockOutSweep removes every zero-HP entity from the board, moves its
// card to the discard pile and awards prize points to the opponent (two
// for an ex card). Runs once per resolution step so that later effects
// see the post-KO board. Active slots are refilled from the bench where
// possible; win conditions are evaluated at the end.
func (gs *GameState) knockOutSweep(log *eventLog) {
	for idx, p := range gs.Players {
		opponent := gs.Opponent(idx)
		for slot := SlotActive; slot <= BenchSize; slot++ {
			e := p.EntityAt(slot)
			if e == nil || !e.IsKnockedOut() {
				continue
			}
			p.setEntity(slot, nil)
			p.discardEntity(e)
			log.add(Event{Type: EventKnockOut, Player: idx, Card: e.Card.Name, Slot: slot})

			points := 1
			if e.Card.IsEx {
				points = 2
			}
			opponent.PrizePoints += points
			if opponent.PrizePoints > PrizePointsToWin {
				opponent.PrizePoints = PrizePointsToWin
			}
			log.add(Event{Type: EventPrizeAwarded, Player: opponent.ID, Amount: points})
		}
		gs.promoteIfNeeded(idx, log)
	}
	gs.evaluateWinConditions(log)
}

// endTurn runs the End phase processing: per-turn status damage for both
// active entities, a single knock-out sweep, then the hand-off to the
// other player. Status damage for both actives is applied before any KO
// evaluation so the ordering between burn and poison never matters.
func (gs *GameState) endTurn(log *eventLog) {
	if gs.Phase == PhaseFinished || gs.Phase == PhaseSetup {
		return
	}
	gs.Phase = PhaseEnd
	log.add(Event{Type: EventPhaseChanged, Card: gs.Phase.String()})

	// Checkup: burn/poison tick both actives, acting player first.
	order := [2]int{gs.CurrentPlayer, 1 - gs.CurrentPlayer}
	for _, idx := range order {
		active := gs.Players[idx].Active
		if active == nil {
			continue
		}
		for _, s := range active.Statuses {
			if s.DamagePerTurn <= 0 {
				continue
			}
			dealt := active.ApplyDamage(s.DamagePerTurn)
			if dealt > 0 {
				log.add(Event{
					Type:        EventDamageDealt,
					Player:      idx,
					Card:        active.Card.Name,
					Amount:      dealt,
					Status:      s.Kind,
					Description: fmt.Sprintf("%s took %d damage from being %s", active.Card.Name, dealt, s.Kind),
				})
			}
		}
	}

	gs.knockOutSweep(log)
	if gs.Phase == PhaseFinished {
		return
	}

	// Conditions on the outgoing player's side wear off at the end of
	// their own turn.
	outgoing := gs.Players[gs.CurrentPlayer]
	if outgoing.Active != nil {
		outgoing.Active.tickStatuses()
	}

	gs.CurrentPlayer = 1 - gs.CurrentPlayer
	gs.TurnNumber++
	gs.Phase = PhaseDraw
	gs.Players[gs.CurrentPlayer].beginTurn()
	log.add(Event{Type: EventTurnBegan, Player: gs.CurrentPlayer, Amount: gs.TurnNumber})
}
