package engine

import (
	"context"

	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/rules"
)

// Action is a player request. Round is the round the client acted in;
// zero skips the staleness check.
type Action struct {
	Kind     models.ActionKind
	Round    int
	Amount   int
	Stock    models.Stock
	Quantity int
	Position models.Position
}

// Outcome describes a committed action.
type Outcome struct {
	RoomID  string
	Delta   rules.Delta
	Player  models.Player
	Round   int
	Turn    int
	Version int64
}

func validate(g *models.Game, nickname string, a Action) (rules.Delta, error) {
	switch a.Kind {
	case models.ActionTakeLoan:
		return rules.ValidateTakeLoan(g, nickname, a.Amount)
	case models.ActionRepayLoan:
		return rules.ValidateRepayLoan(g, nickname, a.Amount)
	case models.ActionBuyStock:
		return rules.ValidateBuyStock(g, nickname, a.Stock, a.Quantity)
	case models.ActionSellStock:
		return rules.ValidateSellStock(g, nickname, a.Stock, a.Quantity)
	case models.ActionBuyGold:
		return rules.ValidateBuyGold(g, nickname, a.Quantity)
	case models.ActionMove:
		return rules.ValidateMove(g, nickname, a.Position)
	default:
		return rules.Delta{}, models.Reject(models.ErrRequest, "unknown action %q", a.Kind)
	}
}

func checkRound(g *models.Game, round int) error {
	if round != 0 && round != g.Round {
		return models.Reject(models.ErrStaleRound, "action for round %d, current round %d", round, g.Round)
	}
	return nil
}

// ApplyAction validates the action against the latest state of the room and
// commits its delta. Rejections come back unchanged from the validator and
// nothing is written.
func (e *Engine) ApplyAction(ctx context.Context, roomID, nickname string, action Action) (*Outcome, error) {
	var delta rules.Delta

	room, err := e.updateGame(ctx, roomID, func(g *models.Game) error {
		if err := checkRound(g, action.Round); err != nil {
			return err
		}
		d, err := validate(g, nickname, action)
		if err != nil {
			return err
		}

		if action.Kind.IsTurnAction() {
			p, err := g.Player(nickname)
			if err != nil {
				return err
			}
			if err := e.turns.Complete(p, action.Kind); err != nil {
				return models.Reject(models.ErrTurnCompleted, "%q in round %d", nickname, g.Round)
			}
			g.Turn++
		}

		if err := d.Apply(g); err != nil {
			return err
		}
		delta = d
		return nil
	})

	e.monitor.ObserveAction(string(action.Kind), resultLabel(err))
	if err != nil {
		logRejection(string(action.Kind), roomID, nickname, err)
		return nil, err
	}

	player, err := room.Game.Player(nickname)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		RoomID:  roomID,
		Delta:   delta,
		Player:  *player,
		Round:   room.Game.Round,
		Turn:    room.Game.Turn,
		Version: room.Version,
	}, nil
}

// BeginOutcome describes a turn that has started.
type BeginOutcome struct {
	RoomID    string
	Nickname  string
	Action    models.ActionKind
	LoanRange *rules.LoanRange
	Version   int64
}

// BeginAction marks the player's turn as in progress. For a loan it also
// reports the range the player may borrow.
func (e *Engine) BeginAction(ctx context.Context, roomID, nickname string, kind models.ActionKind, round int) (*BeginOutcome, error) {
	if !kind.IsTurnAction() {
		return nil, models.Reject(models.ErrRequest, "%q is not a turn action", kind)
	}

	out := &BeginOutcome{RoomID: roomID, Nickname: nickname, Action: kind}
	room, err := e.updateGame(ctx, roomID, func(g *models.Game) error {
		if err := checkRound(g, round); err != nil {
			return err
		}
		p, err := g.Player(nickname)
		if err != nil {
			return err
		}

		out.LoanRange = nil
		if kind == models.ActionTakeLoan {
			r, err := rules.PreviewLoan(g, nickname)
			if err != nil {
				return err
			}
			out.LoanRange = &r
		}

		switch p.ActionStatus {
		case models.StatusInProgress:
			// switching to another action keeps the running turn
			p.CurrentAction = &kind
		default:
			if err := e.turns.Begin(p, kind); err != nil {
				return models.Reject(models.ErrTurnCompleted, "%q in round %d", nickname, g.Round)
			}
			g.PlayerTimeRemaining = e.settings.TurnSeconds
		}
		return nil
	})
	if err != nil {
		logRejection("begin-action", roomID, nickname, err)
		return nil, err
	}

	out.Version = room.Version
	return out, nil
}
