package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/marketgame/logger"
	"github.com/wfunc/marketgame/models"
)

// EventSource picks the economic event for a round.
type EventSource interface {
	Next(ctx context.Context, g *models.Game) (models.EconomicEvent, error)
}

// EventSourceFunc adapts a function to EventSource.
type EventSourceFunc func(ctx context.Context, g *models.Game) (models.EconomicEvent, error)

func (f EventSourceFunc) Next(ctx context.Context, g *models.Game) (models.EconomicEvent, error) {
	return f(ctx, g)
}

var defaultEvents = []models.EconomicEvent{
	{Title: "Rate hike", Description: "The central bank raises the base rate to cool inflation.", Value: 2},
	{Title: "Emergency rate hike", Description: "A currency crisis forces an emergency rate increase.", Value: 3},
	{Title: "Rate cut", Description: "The central bank cuts rates to support growth.", Value: -1},
	{Title: "Stimulus package", Description: "The government eases credit to stimulate the economy.", Value: -2},
	{Title: "Steady policy", Description: "Monetary policy is left unchanged this round.", Value: 0},
	{Title: "Inflation scare", Description: "Rising prices push lenders to demand more interest.", Value: 1},
}

// RandomEvents draws uniformly from a fixed table.
type RandomEvents struct {
	table []models.EconomicEvent
	rng   *rand.Rand
	mu    sync.Mutex
}

// NewRandomEvents uses rng, or a time-seeded source when rng is nil.
func NewRandomEvents(rng *rand.Rand, table ...models.EconomicEvent) *RandomEvents {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(table) == 0 {
		table = defaultEvents
	}
	return &RandomEvents{table: table, rng: rng}
}

func (r *RandomEvents) Next(ctx context.Context, g *models.Game) (models.EconomicEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table[r.rng.Intn(len(r.table))], nil
}

// EventOutcome is an applied economic event.
type EventOutcome struct {
	RoomID       string
	Event        models.EconomicEvent
	InterestRate int
	Round        int
	Version      int64
}

// ApplyEconomicEvent draws one event and shifts the interest rate by its
// value, never below zero. The event is drawn once even if the save has to
// be retried.
func (e *Engine) ApplyEconomicEvent(ctx context.Context, roomID string) (*EventOutcome, error) {
	var drawn *models.EconomicEvent

	room, err := e.updateGame(ctx, roomID, func(g *models.Game) error {
		if drawn == nil {
			ev, err := e.events.Next(ctx, g)
			if err != nil {
				return err
			}
			drawn = &ev
		}

		g.InterestRate += drawn.Value
		if g.InterestRate < 0 {
			g.InterestRate = 0
		}
		ev := *drawn
		g.PendingEvent = &ev
		return nil
	})
	if err != nil {
		logRejection("economic-event", roomID, "", err)
		return nil, err
	}

	logger.Log.Infow("economic event applied", "room", roomID, "title", drawn.Title, "value", drawn.Value, "interestRate", room.Game.InterestRate)
	return &EventOutcome{
		RoomID:       roomID,
		Event:        *drawn,
		InterestRate: room.Game.InterestRate,
		Round:        room.Game.Round,
		Version:      room.Version,
	}, nil
}
