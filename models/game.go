package models

import "fmt"

// Stock identifies one tradable stock.
type Stock int

const StockCount = 5

// MaxStockPriceLevel is the highest stock price level.
const MaxStockPriceLevel = 9

var stockNames = [StockCount]string{"S1", "S2", "S3", "S4", "S5"}

func (s Stock) Valid() bool {
	return s >= 0 && int(s) < StockCount
}

func (s Stock) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stock(%d)", int(s))
	}
	return stockNames[s]
}

// StockInfo 单支股票的行情: 价格与分布计数
type StockInfo struct {
	Price    int    `json:"price"`
	Counters [2]int `json:"counters"`
}

// EconomicEvent is a random occurrence that shifts the interest rate.
type EconomicEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Value       int    `json:"value"`
}

// Settings 对局初始参数
type Settings struct {
	StartingCash        int
	InitialInterestRate int
	RoundSeconds        int
	TurnSeconds         int
	MaxPlayers          int
}

func DefaultSettings() Settings {
	return Settings{
		StartingCash:        100,
		InitialInterestRate: 5,
		RoundSeconds:        120,
		TurnSeconds:         20,
		MaxPlayers:          4,
	}
}

const (
	initialStockPrice = 8
	initialPocket     = 23
	initialGoldPrice  = 20
)

// Game 一个房间内权威的经济与回合状态
type Game struct {
	Players             []Player              `json:"players"`
	Round               int                   `json:"round"`
	Turn                int                   `json:"turn"`
	RoundTimeRemaining  int                   `json:"roundTimeRemaining"`
	PlayerTimeRemaining int                   `json:"playerTimeRemaining"`
	InterestRate        int                   `json:"interestRate"`
	StockPriceLevel     int                   `json:"stockPriceLevel"`
	Market              [StockCount]StockInfo `json:"market"`
	Pocket              [StockCount]int       `json:"pocket"`
	GoldPrice           int                   `json:"goldPrice"`
	GoldCount           int                   `json:"goldCount"`
	PendingEvent        *EconomicEvent        `json:"pendingEvent,omitempty"`
}

// NewGame builds the starting state for the given nicknames, in order.
func NewGame(nicknames []string, s Settings) *Game {
	g := &Game{
		Players:             make([]Player, 0, len(nicknames)),
		Round:               1,
		Turn:                1,
		RoundTimeRemaining:  s.RoundSeconds,
		PlayerTimeRemaining: s.TurnSeconds,
		InterestRate:        s.InitialInterestRate,
		StockPriceLevel:     0,
		GoldPrice:           initialGoldPrice,
	}
	for _, name := range nicknames {
		g.Players = append(g.Players, newPlayer(name, s.StartingCash))
	}
	for i := range g.Market {
		g.Market[i] = StockInfo{Price: initialStockPrice, Counters: [2]int{12, 3}}
		g.Pocket[i] = initialPocket
	}
	return g
}

// Player looks a player up by nickname.
func (g *Game) Player(nickname string) (*Player, error) {
	for i := range g.Players {
		if g.Players[i].Nickname == nickname {
			return &g.Players[i], nil
		}
	}
	return nil, Reject(ErrPlayerNotFound, "%q", nickname)
}

// Clone returns a deep copy that shares no memory with g.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = make([]Player, len(g.Players))
	for i, p := range g.Players {
		c.Players[i] = p.clone()
	}
	if g.PendingEvent != nil {
		ev := *g.PendingEvent
		c.PendingEvent = &ev
	}
	return &c
}
