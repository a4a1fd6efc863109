package engine

import (
	"context"

	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/state"
)

// RoundOutcome describes a round advance.
type RoundOutcome struct {
	RoomID  string
	Round   int
	Game    *models.Game
	Version int64
}

// AdvanceRound moves the room from round to round+1. round must be the
// current round (zero means "whatever is current"); a driver that lost the
// race gets ErrStaleRound.
func (e *Engine) AdvanceRound(ctx context.Context, roomID string, round int) (*RoundOutcome, error) {
	room, err := e.updateGame(ctx, roomID, func(g *models.Game) error {
		if err := checkRound(g, round); err != nil {
			return err
		}

		for i := range g.Players {
			p := &g.Players[i]
			if p.HasLoan {
				p.LoanAmount += p.LoanAmount * p.LoanInterestRate / 100
			}
			state.Reset(p)
		}

		g.Round++
		g.Turn = 1
		g.RoundTimeRemaining = e.settings.RoundSeconds
		g.PlayerTimeRemaining = e.settings.TurnSeconds
		g.PendingEvent = nil
		return nil
	})
	if err != nil {
		logRejection("advance-round", roomID, "", err)
		return nil, err
	}

	e.monitor.IncRoundsAdvanced()
	logger.Log.Infof("Room %s advanced to round %d", roomID, room.Game.Round)
	return &RoundOutcome{
		RoomID:  roomID,
		Round:   room.Game.Round,
		Game:    room.Game,
		Version: room.Version,
	}, nil
}

// TickOutcome is the clock state after a tick.
type TickOutcome struct {
	RoomID              string
	Round               int
	RoundTimeRemaining  int
	PlayerTimeRemaining int
	Expired             []string
	RoundOver           bool
	Version             int64
}

// Tick advances the room clock by elapsed seconds. Players whose turn timer
// runs out are forced to DONE with no other change. RoundOver is set once
// the round time is used up or every connected player is DONE; advancing is
// left to the caller.
func (e *Engine) Tick(ctx context.Context, roomID string, elapsed int) (*TickOutcome, error) {
	out := &TickOutcome{RoomID: roomID}

	room, err := e.updateGame(ctx, roomID, func(g *models.Game) error {
		out.Expired = nil

		g.RoundTimeRemaining -= elapsed
		if g.RoundTimeRemaining < 0 {
			g.RoundTimeRemaining = 0
		}

		if anyInProgress(g) {
			g.PlayerTimeRemaining -= elapsed
			if g.PlayerTimeRemaining <= 0 {
				for i := range g.Players {
					if e.turns.Expire(&g.Players[i]) {
						out.Expired = append(out.Expired, g.Players[i].Nickname)
						g.Turn++
					}
				}
				g.PlayerTimeRemaining = e.settings.TurnSeconds
			}
		} else {
			g.PlayerTimeRemaining = e.settings.TurnSeconds
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g := room.Game
	out.Round = g.Round
	out.RoundTimeRemaining = g.RoundTimeRemaining
	out.PlayerTimeRemaining = g.PlayerTimeRemaining
	out.RoundOver = g.RoundTimeRemaining == 0 || allConnectedDone(g)
	out.Version = room.Version
	return out, nil
}

func anyInProgress(g *models.Game) bool {
	for _, p := range g.Players {
		if p.ActionStatus == models.StatusInProgress {
			return true
		}
	}
	return false
}

// allConnectedDone is false when nobody is connected.
func allConnectedDone(g *models.Game) bool {
	connected := 0
	for _, p := range g.Players {
		if !p.Connected {
			continue
		}
		connected++
		if p.ActionStatus != models.StatusDone {
			return false
		}
	}
	return connected > 0
}

// SetConnected records whether the player currently has a live session.
func (e *Engine) SetConnected(ctx context.Context, roomID, nickname string, connected bool) error {
	_, err := e.updateGame(ctx, roomID, func(g *models.Game) error {
		p, err := g.Player(nickname)
		if err != nil {
			return err
		}
		p.Connected = connected
		return nil
	})
	return err
}
