// Package rules holds the side-effect-free action validators. Each validator
// inspects a Game and returns either a Delta to apply or a typed rejection.
package rules

import "github.com/wfunc/marketgame/models"

// LoanRange is the (Min, Max) amount a player may borrow.
type LoanRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// 股价水平 0~2: 50~100, 3~5: 150~300, 6~9: 500~1000
var loanRanges = [...]LoanRange{
	{Min: 50, Max: 100},
	{Min: 150, Max: 300},
	{Min: 500, Max: 1000},
}

// LoanRangeIndex maps a stock price level onto its loan range bucket.
func LoanRangeIndex(stockPriceLevel int) (int, error) {
	switch {
	case stockPriceLevel < 0 || stockPriceLevel > models.MaxStockPriceLevel:
		return 0, models.Reject(models.ErrInvalidStockLevel, "level %d", stockPriceLevel)
	case stockPriceLevel <= 2:
		return 0, nil
	case stockPriceLevel <= 5:
		return 1, nil
	default:
		return 2, nil
	}
}

func LoanRangeFor(stockPriceLevel int) (LoanRange, error) {
	idx, err := LoanRangeIndex(stockPriceLevel)
	if err != nil {
		return LoanRange{}, err
	}
	return loanRanges[idx], nil
}

// Admits uses exclusive bounds on both ends: the table's own Min and Max are
// rejected.
func (r LoanRange) Admits(amount int) bool {
	return r.Min < amount && amount < r.Max
}
