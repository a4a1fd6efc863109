// Package engine owns the authoritative game state of every room. Each
// operation runs one load/validate/apply/save cycle against the room store
// and retries the whole cycle when a concurrent writer wins the
// compare-and-swap, so actions on one room are linearizable without locks.
package engine

import (
	"context"
	"errors"

	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/monitor"
	"github.com/wfunc/marketgame/persistence"
	"github.com/wfunc/marketgame/state"
)

type Engine struct {
	store    persistence.RoomStore
	events   EventSource
	turns    *state.Machine
	settings models.Settings
	policy   persistence.RetryPolicy
	monitor  *monitor.Monitor
}

type Option func(*Engine)

func WithEventSource(src EventSource) Option {
	return func(e *Engine) { e.events = src }
}

func WithRetryPolicy(policy persistence.RetryPolicy) Option {
	return func(e *Engine) { e.policy = policy }
}

func WithSettings(s models.Settings) Option {
	return func(e *Engine) { e.settings = s }
}

func WithMonitor(m *monitor.Monitor) Option {
	return func(e *Engine) { e.monitor = m }
}

func New(store persistence.RoomStore, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		turns:    state.NewTurnMachine(),
		settings: models.DefaultSettings(),
		policy:   persistence.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = NewRandomEvents(nil)
	}
	return e
}

func (e *Engine) retryPolicy() persistence.RetryPolicy {
	policy := e.policy
	next := policy.OnConflict
	policy.OnConflict = func(roomID string, attempt int) {
		e.monitor.IncUpdateConflicts()
		logger.Log.Debugw("room update conflict", "room", roomID, "attempt", attempt)
		if next != nil {
			next(roomID, attempt)
		}
	}
	return policy
}

// updateGame runs fn on a private copy of the room's game and commits the
// copy. fn may run several times; it must derive everything from its
// argument.
func (e *Engine) updateGame(ctx context.Context, roomID string, fn func(g *models.Game) error) (*models.Room, error) {
	room, err := persistence.UpdateRoom(ctx, e.store, roomID, e.retryPolicy(), func(room *models.Room) error {
		if room.Game == nil {
			return models.Reject(models.ErrGameNotFound, "room %s", roomID)
		}
		work := room.Game.Clone()
		if err := fn(work); err != nil {
			return err
		}
		room.Game = work
		return nil
	})
	if errors.Is(err, models.ErrConcurrentUpdateFailed) {
		e.monitor.IncUpdateExhausted()
		logger.Log.Warnw("room update retry budget exhausted", "room", roomID, "error", err)
	}
	return room, err
}

// Snapshot returns the current stored room.
func (e *Engine) Snapshot(ctx context.Context, roomID string) (*models.Room, error) {
	room, _, err := e.store.Load(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, models.Reject(models.ErrRoomNotFound, "%q", roomID)
	}
	return room, err
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := models.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

func logRejection(op, roomID, nickname string, err error) {
	if models.CodeOf(err) != "" {
		logger.Log.Infow("command rejected", "op", op, "room", roomID, "player", nickname, "reason", err)
		return
	}
	logger.Log.Errorw("command failed", "op", op, "room", roomID, "player", nickname, "error", err)
}
