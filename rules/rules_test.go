package rules_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/marketgame/models"
	"github.com/wfunc/marketgame/rules"
)

func newGame(level int) *models.Game {
	g := models.NewGame([]string{"alice", "bob"}, models.DefaultSettings())
	g.StockPriceLevel = level
	return g
}

func TestLoanRangeFor(t *testing.T) {
	want := map[int]rules.LoanRange{
		0: {Min: 50, Max: 100}, 1: {Min: 50, Max: 100}, 2: {Min: 50, Max: 100},
		3: {Min: 150, Max: 300}, 4: {Min: 150, Max: 300}, 5: {Min: 150, Max: 300},
		6: {Min: 500, Max: 1000}, 7: {Min: 500, Max: 1000}, 8: {Min: 500, Max: 1000}, 9: {Min: 500, Max: 1000},
	}
	for level, expected := range want {
		r, err := rules.LoanRangeFor(level)
		require.NoError(t, err, "level %d", level)
		assert.Equal(t, expected, r, "level %d", level)
	}

	for _, level := range []int{-1, 10, 42} {
		_, err := rules.LoanRangeFor(level)
		assert.ErrorIs(t, err, models.ErrInvalidStockLevel, "level %d", level)
	}
}

func TestValidateTakeLoan(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		amount  int
		setup   func(g *models.Game)
		wantErr error
	}{
		{name: "inside range", level: 4, amount: 200},
		{name: "lower bound is exclusive", level: 4, amount: 150, wantErr: models.ErrAmountOutOfRange},
		{name: "upper bound is exclusive", level: 4, amount: 300, wantErr: models.ErrAmountOutOfRange},
		{name: "level 0 minimum rejected", level: 0, amount: 50, wantErr: models.ErrAmountOutOfRange},
		{name: "level 9 maximum rejected", level: 9, amount: 1000, wantErr: models.ErrAmountOutOfRange},
		{name: "level 9 inside", level: 9, amount: 999},
		{name: "invalid level", level: 10, amount: 200, wantErr: models.ErrInvalidStockLevel},
		{
			name: "existing loan", level: 4, amount: 200, wantErr: models.ErrLoanAlreadyTaken,
			setup: func(g *models.Game) {
				g.Players[0].HasLoan = true
				g.Players[0].LoanAmount = 200
			},
		},
		{
			name: "repaid loan still counts", level: 4, amount: 200, wantErr: models.ErrLoanAlreadyTaken,
			setup: func(g *models.Game) { g.Players[0].LoanUsed = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGame(tt.level)
			if tt.setup != nil {
				tt.setup(g)
			}
			before := g.Clone()

			d, err := rules.ValidateTakeLoan(g, "alice", tt.amount)
			assert.Equal(t, before, g, "validator must not mutate the game")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, d.Cash)
			require.NotNil(t, d.Loan)
			assert.True(t, d.Loan.HasLoan)
			assert.Equal(t, tt.amount, d.Loan.Amount)
			assert.Equal(t, g.InterestRate, d.Loan.InterestRate)
		})
	}
}

func TestValidateTakeLoan_UnknownPlayer(t *testing.T) {
	_, err := rules.ValidateTakeLoan(newGame(4), "mallory", 200)
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
}

func TestTakeLoanDeltaApply(t *testing.T) {
	g := newGame(4)
	d, err := rules.ValidateTakeLoan(g, "alice", 200)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))

	alice, err := g.Player("alice")
	require.NoError(t, err)
	assert.True(t, alice.HasLoan)
	assert.True(t, alice.LoanUsed)
	assert.Equal(t, 200, alice.LoanAmount)
	assert.Equal(t, 300, alice.Cash)
	assert.Equal(t, 5, alice.LoanInterestRate)

	_, err = rules.ValidateTakeLoan(g, "alice", 250)
	assert.ErrorIs(t, err, models.ErrLoanAlreadyTaken)
}

func TestRepayLoan(t *testing.T) {
	g := newGame(4)
	d, err := rules.ValidateTakeLoan(g, "alice", 200)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))

	_, err = rules.ValidateRepayLoan(g, "bob", 10)
	assert.ErrorIs(t, err, models.ErrNoLoan)
	_, err = rules.ValidateRepayLoan(g, "alice", 0)
	assert.ErrorIs(t, err, models.ErrAmountOutOfRange)
	_, err = rules.ValidateRepayLoan(g, "alice", 201)
	assert.ErrorIs(t, err, models.ErrAmountOutOfRange)

	d, err = rules.ValidateRepayLoan(g, "alice", 50)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))
	alice, _ := g.Player("alice")
	assert.True(t, alice.HasLoan)
	assert.Equal(t, 150, alice.LoanAmount)
	assert.Equal(t, 250, alice.Cash)

	d, err = rules.ValidateRepayLoan(g, "alice", 150)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))
	alice, _ = g.Player("alice")
	assert.False(t, alice.HasLoan)
	assert.Zero(t, alice.LoanAmount)
	assert.Equal(t, 100, alice.Cash)
	assert.True(t, alice.LoanUsed)
}

func TestRepayLoan_InsufficientCash(t *testing.T) {
	g := newGame(4)
	g.Players[0].HasLoan = true
	g.Players[0].LoanAmount = 200
	g.Players[0].Cash = 20

	_, err := rules.ValidateRepayLoan(g, "alice", 100)
	assert.ErrorIs(t, err, models.ErrInsufficientCash)
}

func TestStockTrades(t *testing.T) {
	g := newGame(0)

	_, err := rules.ValidateBuyStock(g, "alice", models.Stock(7), 1)
	assert.ErrorIs(t, err, models.ErrInvalidStock)
	_, err = rules.ValidateBuyStock(g, "alice", 0, 0)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	_, err = rules.ValidateBuyStock(g, "alice", 0, 13) // 13*8 > 100
	assert.ErrorIs(t, err, models.ErrInsufficientCash)

	d, err := rules.ValidateBuyStock(g, "alice", 2, 5)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))
	alice, _ := g.Player("alice")
	assert.Equal(t, 60, alice.Cash)
	assert.Equal(t, 5, alice.StockHoldings[2])
	assert.Equal(t, 18, g.Pocket[2])

	_, err = rules.ValidateSellStock(g, "alice", 2, 6)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	d, err = rules.ValidateSellStock(g, "alice", 2, 3)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))
	alice, _ = g.Player("alice")
	assert.Equal(t, 84, alice.Cash)
	assert.Equal(t, 2, alice.StockHoldings[2])
	assert.Equal(t, 21, g.Pocket[2])
}

func TestBuyStock_PocketExhausted(t *testing.T) {
	g := newGame(0)
	g.Pocket[1] = 2
	g.Players[0].Cash = 1000

	_, err := rules.ValidateBuyStock(g, "alice", 1, 3)
	assert.ErrorIs(t, err, models.ErrPocketExhausted)
}

func TestBuyGold(t *testing.T) {
	g := newGame(0)

	_, err := rules.ValidateBuyGold(g, "bob", 6)
	assert.ErrorIs(t, err, models.ErrInsufficientCash)

	d, err := rules.ValidateBuyGold(g, "bob", 5)
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))
	bob, _ := g.Player("bob")
	assert.Equal(t, 0, bob.Cash)
	assert.Equal(t, 5, bob.GoldCount)
	assert.Equal(t, 5, g.GoldCount)
}

func TestBuyGold_QuantityOverflow(t *testing.T) {
	g := newGame(0)

	// 20 * q wraps to a negative cost
	_, err := rules.ValidateBuyGold(g, "bob", 4611686018427337904)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	_, err = rules.ValidateBuyGold(g, "bob", math.MaxInt/20+1)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = rules.ValidateBuyGold(g, "bob", math.MaxInt/20)
	assert.ErrorIs(t, err, models.ErrInsufficientCash)
}

func TestStockTrades_ValueOverflow(t *testing.T) {
	g := newGame(0)
	g.Market[0].Price = math.MaxInt / 2
	bob, _ := g.Player("bob")
	bob.StockHoldings[0] = 3

	_, err := rules.ValidateSellStock(g, "bob", 0, 3)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	_, err = rules.ValidateBuyStock(g, "bob", 0, 3)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestDeltaApply_TypedBalanceErrors(t *testing.T) {
	g := newGame(0)
	d := rules.Delta{Kind: models.ActionBuyGold, Nickname: "alice", Cash: -101}
	err := d.Apply(g)
	assert.ErrorIs(t, err, models.ErrInsufficientCash)
	assert.Equal(t, models.Code("INSUFFICIENT_CASH"), models.CodeOf(err))

	g = newGame(0)
	d = rules.Delta{Kind: models.ActionSellStock, Nickname: "alice", Stock: &rules.StockChange{Stock: 1, Quantity: -1}}
	assert.ErrorIs(t, d.Apply(g), models.ErrInsufficientStock)
}

func TestValidateMove(t *testing.T) {
	g := newGame(0)

	d, err := rules.ValidateMove(g, "alice", models.Position{X: 1, Y: -1})
	require.NoError(t, err)
	require.NoError(t, d.Apply(g))
	alice, _ := g.Player("alice")
	assert.Equal(t, models.Position{X: 1, Y: -1}, alice.Position)

	_, err = rules.ValidateMove(g, "alice", models.Position{X: 3})
	assert.ErrorIs(t, err, models.ErrInvalidMove)
	_, err = rules.ValidateMove(g, "nobody", models.Position{})
	assert.ErrorIs(t, err, models.ErrPlayerNotFound)
}
