package rules

import (
	"math"

	"github.com/wfunc/marketgame/models"
)

// ValidateTakeLoan checks the once-per-match loan against the range of the
// current stock price level. The loan rate is fixed at issuance.
func ValidateTakeLoan(g *models.Game, nickname string, amount int) (Delta, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return Delta{}, err
	}
	if p.HasLoan || p.LoanUsed {
		return Delta{}, models.Reject(models.ErrLoanAlreadyTaken, "%q", nickname)
	}
	r, err := LoanRangeFor(g.StockPriceLevel)
	if err != nil {
		return Delta{}, err
	}
	if !r.Admits(amount) {
		return Delta{}, models.Reject(models.ErrAmountOutOfRange, "%d not in (%d, %d)", amount, r.Min, r.Max)
	}

	return Delta{
		Kind:     models.ActionTakeLoan,
		Nickname: nickname,
		Cash:     amount,
		Loan: &LoanState{
			HasLoan:      true,
			Amount:       amount,
			InterestRate: g.InterestRate,
		},
	}, nil
}

// PreviewLoan reports the range a player could borrow right now.
func PreviewLoan(g *models.Game, nickname string) (LoanRange, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return LoanRange{}, err
	}
	if p.HasLoan || p.LoanUsed {
		return LoanRange{}, models.Reject(models.ErrLoanAlreadyTaken, "%q", nickname)
	}
	return LoanRangeFor(g.StockPriceLevel)
}

// ValidateRepayLoan allows partial repayment out of cash. Repaying the rest
// clears the loan but does not allow a second one.
func ValidateRepayLoan(g *models.Game, nickname string, amount int) (Delta, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return Delta{}, err
	}
	if !p.HasLoan {
		return Delta{}, models.Reject(models.ErrNoLoan, "%q", nickname)
	}
	if amount <= 0 || amount > p.LoanAmount {
		return Delta{}, models.Reject(models.ErrAmountOutOfRange, "%d not in [1, %d]", amount, p.LoanAmount)
	}
	if amount > p.Cash {
		return Delta{}, models.Reject(models.ErrInsufficientCash, "need %d, have %d", amount, p.Cash)
	}

	remaining := p.LoanAmount - amount
	return Delta{
		Kind:     models.ActionRepayLoan,
		Nickname: nickname,
		Cash:     -amount,
		Loan: &LoanState{
			HasLoan:      remaining > 0,
			Amount:       remaining,
			InterestRate: p.LoanInterestRate,
		},
	}, nil
}

func checkTrade(stock models.Stock, quantity int) error {
	if !stock.Valid() {
		return models.Reject(models.ErrInvalidStock, "%d", int(stock))
	}
	if quantity <= 0 {
		return models.Reject(models.ErrInvalidQuantity, "%d", quantity)
	}
	return nil
}

// tradeValue is price*quantity, rejected when the product does not fit an int.
func tradeValue(price, quantity int) (int, error) {
	if price < 0 {
		return 0, models.Reject(models.ErrInvalidQuantity, "price %d", price)
	}
	if price > 0 && quantity > math.MaxInt/price {
		return 0, models.Reject(models.ErrInvalidQuantity, "%d units at %d", quantity, price)
	}
	return price * quantity, nil
}

// ValidateBuyStock moves units from the pocket to the player at the market price.
func ValidateBuyStock(g *models.Game, nickname string, stock models.Stock, quantity int) (Delta, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return Delta{}, err
	}
	if err := checkTrade(stock, quantity); err != nil {
		return Delta{}, err
	}
	if g.Pocket[stock] < quantity {
		return Delta{}, models.Reject(models.ErrPocketExhausted, "%s: %d left", stock, g.Pocket[stock])
	}
	price := g.Market[stock].Price
	cost, err := tradeValue(price, quantity)
	if err != nil {
		return Delta{}, err
	}
	if cost > p.Cash {
		return Delta{}, models.Reject(models.ErrInsufficientCash, "need %d, have %d", cost, p.Cash)
	}

	return Delta{
		Kind:     models.ActionBuyStock,
		Nickname: nickname,
		Cash:     -cost,
		Stock:    &StockChange{Stock: stock, Quantity: quantity, Price: price},
	}, nil
}

// ValidateSellStock returns units to the pocket at the market price.
func ValidateSellStock(g *models.Game, nickname string, stock models.Stock, quantity int) (Delta, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return Delta{}, err
	}
	if err := checkTrade(stock, quantity); err != nil {
		return Delta{}, err
	}
	if p.StockHoldings[stock] < quantity {
		return Delta{}, models.Reject(models.ErrInsufficientStock, "%s: hold %d", stock, p.StockHoldings[stock])
	}
	price := g.Market[stock].Price
	proceeds, err := tradeValue(price, quantity)
	if err != nil {
		return Delta{}, err
	}
	if proceeds > math.MaxInt-p.Cash {
		return Delta{}, models.Reject(models.ErrInvalidQuantity, "%d units at %d", quantity, price)
	}

	return Delta{
		Kind:     models.ActionSellStock,
		Nickname: nickname,
		Cash:     proceeds,
		Stock:    &StockChange{Stock: stock, Quantity: -quantity, Price: price},
	}, nil
}

// ValidateBuyGold buys gold at the current gold price.
func ValidateBuyGold(g *models.Game, nickname string, quantity int) (Delta, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return Delta{}, err
	}
	if quantity <= 0 {
		return Delta{}, models.Reject(models.ErrInvalidQuantity, "%d", quantity)
	}
	cost, err := tradeValue(g.GoldPrice, quantity)
	if err != nil {
		return Delta{}, err
	}
	if cost > p.Cash {
		return Delta{}, models.Reject(models.ErrInsufficientCash, "need %d, have %d", cost, p.Cash)
	}

	return Delta{
		Kind:     models.ActionBuyGold,
		Nickname: nickname,
		Cash:     -cost,
		Gold:     quantity,
	}, nil
}

// ValidateMove accepts any move of at most one step per axis. Collisions
// between players are not checked.
func ValidateMove(g *models.Game, nickname string, to models.Position) (Delta, error) {
	p, err := g.Player(nickname)
	if err != nil {
		return Delta{}, err
	}
	if !p.Position.Adjacent(to) {
		return Delta{}, models.Reject(models.ErrInvalidMove, "%v -> %v", p.Position, to)
	}

	return Delta{
		Kind:     models.ActionMove,
		Nickname: nickname,
		Position: &to,
	}, nil
}
