package models

// ActionKind 玩家行为类型
type ActionKind string

const (
	ActionTakeLoan  ActionKind = "take-loan"
	ActionRepayLoan ActionKind = "repay-loan"
	ActionBuyStock  ActionKind = "buy-stock"
	ActionSellStock ActionKind = "sell-stock"
	ActionBuyGold   ActionKind = "buy-gold"
	ActionMove      ActionKind = "move"
)

// IsTurnAction reports whether the action consumes the player's turn.
func (k ActionKind) IsTurnAction() bool {
	switch k {
	case ActionTakeLoan, ActionRepayLoan, ActionBuyStock, ActionSellStock, ActionBuyGold:
		return true
	}
	return false
}

// ActionStatus 玩家行为状态
type ActionStatus string

const (
	StatusNotStarted ActionStatus = "NOT_STARTED"
	StatusInProgress ActionStatus = "IN_PROGRESS"
	StatusDone       ActionStatus = "DONE"
)

// Position is a discrete board coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Adjacent reports whether q is at most one step away from p on every axis.
func (p Position) Adjacent(q Position) bool {
	return abs(p.X-q.X) <= 1 && abs(p.Y-q.Y) <= 1 && abs(p.Z-q.Z) <= 1
}

// Player 玩家在一局游戏中的全部状态
type Player struct {
	Nickname         string          `json:"nickname"`
	Cash             int             `json:"cash"`
	GoldCount        int             `json:"goldCount"`
	StockHoldings    [StockCount]int `json:"stockHoldings"`
	HasLoan          bool            `json:"hasLoan"`
	LoanUsed         bool            `json:"loanUsed"`
	LoanAmount       int             `json:"loanAmount"`
	LoanInterestRate int             `json:"loanInterestRate"`
	Position         Position        `json:"position"`
	CurrentAction    *ActionKind     `json:"currentAction,omitempty"`
	ActionStatus     ActionStatus    `json:"actionStatus"`
	Connected        bool            `json:"connected"`
}

func newPlayer(nickname string, cash int) Player {
	return Player{
		Nickname:     nickname,
		Cash:         cash,
		ActionStatus: StatusNotStarted,
		Connected:    true,
	}
}

func (p Player) clone() Player {
	if p.CurrentAction != nil {
		action := *p.CurrentAction
		p.CurrentAction = &action
	}
	return p
}
