package models

import (
	"errors"
	"fmt"
)

// Code 是返回给客户端的稳定错误码
type Code string

// Error is a typed rejection. Every command failure the engine returns wraps
// exactly one of the sentinels below.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

var (
	ErrRequest                = newError("REQUEST_ERROR", "malformed request")
	ErrRoomNotFound           = newError("ROOM_NOT_FOUND", "room not found")
	ErrGameNotFound           = newError("GAME_NOT_FOUND", "game not found")
	ErrPlayerNotFound         = newError("PLAYER_NOT_FOUND", "player not found")
	ErrNoPlayers              = newError("NO_PLAYERS", "no players to start the game")
	ErrLoanAlreadyTaken       = newError("LOAN_ALREADY_TAKEN", "loan already taken")
	ErrInvalidStockLevel      = newError("INVALID_STOCK_LEVEL", "invalid stock price level")
	ErrAmountOutOfRange       = newError("AMOUNT_OUT_OF_RANGE", "amount out of range")
	ErrStaleRound             = newError("STALE_ROUND", "round has already advanced")
	ErrConcurrentUpdateFailed = newError("CONCURRENT_UPDATE_FAILED", "too many concurrent updates, retry the command")

	ErrNoLoan            = newError("NO_LOAN", "player has no loan")
	ErrInsufficientCash  = newError("INSUFFICIENT_CASH", "insufficient cash")
	ErrInsufficientStock = newError("INSUFFICIENT_STOCK", "insufficient stock holdings")
	ErrPocketExhausted   = newError("POCKET_EXHAUSTED", "not enough stock left in the pocket")
	ErrInvalidQuantity   = newError("INVALID_QUANTITY", "quantity must be positive")
	ErrInvalidStock      = newError("INVALID_STOCK", "unknown stock")
	ErrInvalidMove       = newError("INVALID_MOVE", "move exceeds one step")
	ErrTurnCompleted     = newError("TURN_COMPLETED", "player already acted this round")
	ErrRoomExists        = newError("ROOM_EXISTS", "room already exists")
	ErrGameStarted       = newError("GAME_STARTED", "game already started")
	ErrRoomFull          = newError("ROOM_FULL", "room is full")
)

// Reject wraps a sentinel with detail while keeping errors.Is working.
func Reject(base *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}

// CodeOf returns the rejection code carried by err, or "" for
// infrastructure errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
