package game

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why an action was rejected.
type ErrorCode string

const (
	CodeIllegalAction      ErrorCode = "ILLEGAL_ACTION"
	CodeNotYourTurn        ErrorCode = "NOT_YOUR_TURN"
	CodeWrongPhase         ErrorCode = "WRONG_PHASE"
	CodeInvalidTarget      ErrorCode = "INVALID_TARGET"
	CodeNoSuchTarget       ErrorCode = "NO_SUCH_TARGET"
	CodeInsufficientEnergy ErrorCode = "INSUFFICIENT_ENERGY"
	CodeGameFinished       ErrorCode = "GAME_FINISHED"
)

// ActionError is the typed rejection returned for any invalid action.
// The game state is guaranteed untouched when one is returned.
type ActionError struct {
	Code   ErrorCode
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func errIllegal(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeIllegalAction, Reason: fmt.Sprintf(format, args...)}
}

func errNotYourTurn(actor, current int) *ActionError {
	return &ActionError{
		Code:   CodeNotYourTurn,
		Reason: fmt.Sprintf("player %d acted but it is player %d's turn", actor, current),
	}
}

func errWrongPhase(phase Phase, want string) *ActionError {
	return &ActionError{
		Code:   CodeWrongPhase,
		Reason: fmt.Sprintf("phase is %s, action requires %s", phase, want),
	}
}

func errNoTarget(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeNoSuchTarget, Reason: fmt.Sprintf(format, args...)}
}

func errInvalidTarget(format string, args ...any) *ActionError {
	return &ActionError{Code: CodeInvalidTarget, Reason: fmt.Sprintf(format, args...)}
}

func errInsufficientEnergy(attack string) *ActionError {
	return &ActionError{
		Code:   CodeInsufficientEnergy,
		Reason: fmt.Sprintf("attached energy does not satisfy the cost of %s", attack),
	}
}

// ErrInvariantViolation signals that a game state failed an internal
// consistency check. Sessions that observe it must terminate rather than
// continue with a possibly divergent state.
var ErrInvariantViolation = errors.New("internal invariant violation")
