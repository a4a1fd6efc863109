package rules

import (
	"github.com/wfunc/marketgame/models"
)

// StockChange is a signed change of one player's holdings. A positive
// Quantity moves units from the pocket to the player.
type StockChange struct {
	Stock    models.Stock `json:"stock"`
	Quantity int          `json:"quantity"`
	Price    int          `json:"price"`
}

// LoanState carries the absolute loan fields after the action.
type LoanState struct {
	HasLoan      bool `json:"hasLoan"`
	Amount       int  `json:"amount"`
	InterestRate int  `json:"interestRate"`
}

// Delta is an accepted change to a single player (and the shared market
// counters it touches). Cash and Gold are relative.
type Delta struct {
	Kind     models.ActionKind `json:"kind"`
	Nickname string            `json:"nickname"`
	Cash     int               `json:"cash,omitempty"`
	Gold     int               `json:"gold,omitempty"`
	Stock    *StockChange      `json:"stock,omitempty"`
	Loan     *LoanState        `json:"loan,omitempty"`
	Position *models.Position  `json:"position,omitempty"`
}

// Apply mutates g. Callers pass a working copy; on error the copy must be
// discarded.
func (d Delta) Apply(g *models.Game) error {
	p, err := g.Player(d.Nickname)
	if err != nil {
		return err
	}

	p.Cash += d.Cash
	if d.Gold != 0 {
		p.GoldCount += d.Gold
		g.GoldCount += d.Gold
	}
	if d.Stock != nil {
		p.StockHoldings[d.Stock.Stock] += d.Stock.Quantity
		g.Pocket[d.Stock.Stock] -= d.Stock.Quantity
	}
	if d.Loan != nil {
		p.HasLoan = d.Loan.HasLoan
		p.LoanAmount = d.Loan.Amount
		p.LoanInterestRate = d.Loan.InterestRate
		if d.Loan.HasLoan {
			p.LoanUsed = true
		}
	}
	if d.Position != nil {
		p.Position = *d.Position
	}

	return checkBalances(g, p)
}

func checkBalances(g *models.Game, p *models.Player) error {
	if p.Cash < 0 {
		return models.Reject(models.ErrInsufficientCash, "cash %d for %q", p.Cash, p.Nickname)
	}
	if p.GoldCount < 0 || g.GoldCount < 0 {
		return models.Reject(models.ErrInvalidQuantity, "gold %d for %q", p.GoldCount, p.Nickname)
	}
	if p.LoanAmount < 0 || (p.HasLoan && p.LoanAmount <= 0) {
		return models.Reject(models.ErrAmountOutOfRange, "loan %d for %q", p.LoanAmount, p.Nickname)
	}
	for s := range p.StockHoldings {
		if p.StockHoldings[s] < 0 {
			return models.Reject(models.ErrInsufficientStock, "%s: hold %d", models.Stock(s), p.StockHoldings[s])
		}
		if g.Pocket[s] < 0 {
			return models.Reject(models.ErrPocketExhausted, "%s: %d left", models.Stock(s), g.Pocket[s])
		}
	}
	return nil
}
