// Package dispatch routes named game commands to the engine and shapes the
// events broadcast for every command that commits.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wfunc/marketgame/engine"
	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/monitor"
	"github.com/wfunc/marketgame/rules"
)

// Name 命令名称，集合是封闭的
type Name string

const (
	TakeLoan      Name = "take-loan"
	RepayLoan     Name = "repay-loan"
	BuyStock      Name = "buy-stock"
	SellStock     Name = "sell-stock"
	BuyGold       Name = "buy-gold"
	Move          Name = "move"
	AdvanceRound  Name = "advance-round"
	EconomicEvent Name = "economic-event"
	BeginAction   Name = "begin-action"
)

// 广播事件类型
const (
	EventLoanTaken       = "LOAN_TAKEN"
	EventLoanRepaid      = "LOAN_REPAID"
	EventStockBought     = "STOCK_BOUGHT"
	EventStockSold       = "STOCK_SOLD"
	EventGoldBought      = "GOLD_BOUGHT"
	EventPlayerMoved     = "PLAYER_MOVED"
	EventActionStarted   = "ACTION_STARTED"
	EventRoundAdvanced   = "ROUND_ADVANCED"
	EventEconomicApplied = "ECONOMIC_EVENT_APPLIED"
	EventGameInitialized = "GAME_INITIALIZED"
	EventTurnExpired     = "TURN_EXPIRED"
	GameManagerSenderTag = "GAME_MANAGER"
)

// Command is one inbound request.
type Command struct {
	Name    Name            `json:"command"`
	RoomID  string          `json:"roomId"`
	Sender  string          `json:"sender"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is broadcast to every subscriber of the room.
type Event struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"roomId"`
	SenderTag string      `json:"senderTag"`
	Data      interface{} `json:"data"`
}

// payload covers the fields of every command; each command reads only its own.
type payload struct {
	Round    int               `json:"round"`
	Amount   int               `json:"amount"`
	Stock    models.Stock      `json:"stock"`
	Quantity int               `json:"quantity"`
	Position models.Position   `json:"position"`
	Action   models.ActionKind `json:"action"`
}

// ActionData is the event body of a committed player action.
type ActionData struct {
	Delta  rules.Delta   `json:"delta"`
	Player models.Player `json:"player"`
	Round  int           `json:"round"`
	Turn   int           `json:"turn"`
}

type BeginData struct {
	Nickname  string            `json:"nickname"`
	Action    models.ActionKind `json:"action"`
	LoanRange *rules.LoanRange  `json:"loanRange,omitempty"`
}

type RoundData struct {
	Round int          `json:"round"`
	Game  *models.Game `json:"game"`
}

type EconomicData struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Value        int    `json:"value"`
	InterestRate int    `json:"interestRate"`
	Round        int    `json:"round"`
}

type Dispatcher struct {
	engine  *engine.Engine
	monitor *monitor.Monitor
}

func NewDispatcher(e *engine.Engine, m *monitor.Monitor) *Dispatcher {
	return &Dispatcher{engine: e, monitor: m}
}

// Handle runs cmd and returns the event to broadcast. An unknown command
// name is logged and dropped: both return values are nil.
func (d *Dispatcher) Handle(ctx context.Context, cmd *Command) (*Event, error) {
	if cmd.RoomID == "" || cmd.Sender == "" {
		return nil, models.Reject(models.ErrRequest, "roomId and sender are required")
	}

	start := time.Now()
	defer func() { d.monitor.ObserveCommand(string(cmd.Name), time.Since(start)) }()

	switch cmd.Name {
	case TakeLoan, RepayLoan, BuyStock, SellStock, BuyGold, Move:
		p, err := decode(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return d.applyAction(ctx, cmd, p)

	case BeginAction:
		p, err := decode(cmd.Payload)
		if err != nil {
			return nil, err
		}
		out, err := d.engine.BeginAction(ctx, cmd.RoomID, cmd.Sender, p.Action, p.Round)
		if err != nil {
			return nil, err
		}
		return &Event{
			Type:      EventActionStarted,
			RoomID:    cmd.RoomID,
			SenderTag: cmd.Sender,
			Data:      BeginData{Nickname: cmd.Sender, Action: out.Action, LoanRange: out.LoanRange},
		}, nil

	case AdvanceRound:
		p, err := decode(cmd.Payload)
		if err != nil {
			return nil, err
		}
		out, err := d.engine.AdvanceRound(ctx, cmd.RoomID, p.Round)
		if err != nil {
			return nil, err
		}
		return RoundEvent(out), nil

	case EconomicEvent:
		out, err := d.engine.ApplyEconomicEvent(ctx, cmd.RoomID)
		if err != nil {
			return nil, err
		}
		return EconomicEventApplied(out), nil

	default:
		logger.Log.Warnw("unknown command dropped", "command", cmd.Name, "room", cmd.RoomID, "sender", cmd.Sender)
		return nil, nil
	}
}

func (d *Dispatcher) applyAction(ctx context.Context, cmd *Command, p payload) (*Event, error) {
	action := engine.Action{
		Kind:     models.ActionKind(cmd.Name),
		Round:    p.Round,
		Amount:   p.Amount,
		Stock:    p.Stock,
		Quantity: p.Quantity,
		Position: p.Position,
	}
	out, err := d.engine.ApplyAction(ctx, cmd.RoomID, cmd.Sender, action)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      actionEventType(action.Kind),
		RoomID:    cmd.RoomID,
		SenderTag: cmd.Sender,
		Data: ActionData{
			Delta:  out.Delta,
			Player: out.Player,
			Round:  out.Round,
			Turn:   out.Turn,
		},
	}, nil
}

func actionEventType(kind models.ActionKind) string {
	switch kind {
	case models.ActionTakeLoan:
		return EventLoanTaken
	case models.ActionRepayLoan:
		return EventLoanRepaid
	case models.ActionBuyStock:
		return EventStockBought
	case models.ActionSellStock:
		return EventStockSold
	case models.ActionBuyGold:
		return EventGoldBought
	default:
		return EventPlayerMoved
	}
}

func decode(raw json.RawMessage) (payload, error) {
	var p payload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, models.Reject(models.ErrRequest, "bad payload: %v", err)
	}
	return p, nil
}

// RoundEvent shapes a round advance for broadcast.
func RoundEvent(out *engine.RoundOutcome) *Event {
	return &Event{
		Type:      EventRoundAdvanced,
		RoomID:    out.RoomID,
		SenderTag: GameManagerSenderTag,
		Data:      RoundData{Round: out.Round, Game: out.Game},
	}
}

func EconomicEventApplied(out *engine.EventOutcome) *Event {
	return &Event{
		Type:      EventEconomicApplied,
		RoomID:    out.RoomID,
		SenderTag: GameManagerSenderTag,
		Data: EconomicData{
			Title:        out.Event.Title,
			Description:  out.Event.Description,
			Value:        out.Event.Value,
			InterestRate: out.InterestRate,
			Round:        out.Round,
		},
	}
}

func GameInitialized(room *models.Room, sender string) *Event {
	return &Event{
		Type:      EventGameInitialized,
		RoomID:    room.ID,
		SenderTag: sender,
		Data:      room.Game,
	}
}

// TurnsExpired is sent by the clock when turn timers run out.
func TurnsExpired(out *engine.TickOutcome) *Event {
	return &Event{
		Type:      EventTurnExpired,
		RoomID:    out.RoomID,
		SenderTag: GameManagerSenderTag,
		Data:      map[string]interface{}{"round": out.Round, "players": out.Expired},
	}
}

// Reply is the error body sent back to the sender only.
type Reply struct {
	Code    models.Code `json:"code"`
	Message string      `json:"message"`
}

// ErrorReply maps err to a client reply. Infrastructure errors are not
// leaked.
func ErrorReply(err error) Reply {
	code := models.CodeOf(err)
	if code == "" {
		return Reply{Code: "INTERNAL_ERROR", Message: "internal error"}
	}
	return Reply{Code: code, Message: err.Error()}
}
