package rebalance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func target(symbol, value string) model.TargetPosition {
	return model.TargetPosition{Symbol: symbol, AssetClass: model.AssetClassUSEquity, TargetValue: d(value)}
}

func held(symbol, qty, mv string) model.CurrentPosition {
	side := model.PositionSideLong
	if d(qty).IsNegative() {
		side = model.PositionSideShort
	}
	return model.CurrentPosition{Symbol: symbol, Qty: d(qty), MarketValue: d(mv), Side: side}
}

func labels(intents []model.OrderIntent) []string {
	out := make([]string, 0, len(intents))
	for _, i := range intents {
		out = append(out, i.String())
	}
	return out
}

func TestPlanOrdersReducesBeforeIncreases(t *testing.T) {
	intents, err := Plan(
		[]model.TargetPosition{target("AAPL", "1000"), target("GOOGL", "2000")},
		[]model.CurrentPosition{held("AAPL", "15", "1500"), held("MSFT", "8", "800")},
		DefaultDeMinimis,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"reduce sell AAPL $500.00",
		"close sell MSFT $800.00",
		"open buy GOOGL $2000.00",
	}, labels(intents))
	assert.Equal(t, model.PhaseReduce, intents[0].Phase)
	assert.Equal(t, model.PhaseReduce, intents[1].Phase)
	assert.Equal(t, model.PhaseIncrease, intents[2].Phase)
}

func TestPlanDeMinimisBoundary(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		current string
		want    int
	}{
		{name: "below threshold", target: "1000.99", current: "1000", want: 0},
		{name: "exactly one dollar", target: "1001", current: "1000", want: 1},
		{name: "exactly one dollar down", target: "999", current: "1000", want: 1},
		{name: "unchanged", target: "1000", current: "1000", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents, err := Plan(
				[]model.TargetPosition{target("AAPL", tt.target)},
				[]model.CurrentPosition{held("AAPL", "10", tt.current)},
				DefaultDeMinimis,
			)
			require.NoError(t, err)
			assert.Len(t, intents, tt.want)
		})
	}
}

func TestPlanZeroTargetClosesEvenBelowThreshold(t *testing.T) {
	intents, err := Plan(
		[]model.TargetPosition{target("AAPL", "0")},
		[]model.CurrentPosition{held("AAPL", "0.005", "0.50")},
		DefaultDeMinimis,
	)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, model.OrderKindClose, intents[0].Kind)
}

func TestPlanZeroTargetWithoutHoldingIsNoop(t *testing.T) {
	intents, err := Plan([]model.TargetPosition{target("AAPL", "0")}, nil, DefaultDeMinimis)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestPlanEmptyTargetClosesEverything(t *testing.T) {
	intents, err := Plan(nil, []model.CurrentPosition{
		held("AAPL", "10", "1500"),
		held("TSLA", "-4", "-800"),
	}, DefaultDeMinimis)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"close sell AAPL $1500.00",
		"close buy TSLA $800.00",
	}, labels(intents))
}

func TestPlanShortTransitions(t *testing.T) {
	intents, err := Plan(
		[]model.TargetPosition{
			target("AMD", "-500"),  // open short
			target("NVDA", "-200"), // cover part of -600
			target("INTC", "300"),  // short flipped to long
		},
		[]model.CurrentPosition{
			held("NVDA", "-6", "-600"),
			held("INTC", "-2", "-200"),
		},
		DefaultDeMinimis,
	)
	require.NoError(t, err)

	byKey := map[string]model.OrderIntent{}
	for _, i := range intents {
		byKey[i.Symbol] = i
	}

	assert.Equal(t, model.OrderKindOpen, byKey["AMD"].Kind)
	assert.Equal(t, model.SideSell, byKey["AMD"].Side)
	assert.Equal(t, model.PhaseReduce, byKey["AMD"].Phase)

	assert.Equal(t, model.OrderKindReduce, byKey["NVDA"].Kind)
	assert.Equal(t, model.SideBuy, byKey["NVDA"].Side)
	assert.True(t, d("400").Equal(byKey["NVDA"].Notional))

	assert.Equal(t, model.OrderKindIncrease, byKey["INTC"].Kind)
	assert.Equal(t, model.SideBuy, byKey["INTC"].Side)
	assert.True(t, d("500").Equal(byKey["INTC"].Notional))
	assert.Equal(t, model.PhaseIncrease, byKey["INTC"].Phase)
}

func TestPlanRejectsBadTargets(t *testing.T) {
	_, err := Plan([]model.TargetPosition{target("AAPL", "1"), target("aapl", "2")}, nil, DefaultDeMinimis)
	require.Error(t, err)

	_, err = Plan([]model.TargetPosition{target(" ", "1")}, nil, DefaultDeMinimis)
	require.Error(t, err)

	_, err = Plan(nil, nil, d("-1"))
	require.Error(t, err)
}

func TestPlanRoundTripIsEmpty(t *testing.T) {
	current := []model.CurrentPosition{
		held("AAPL", "10", "1500"),
		held("MSFT", "2", "800"),
		held("TSLA", "-4", "-800"),
	}
	targets := make([]model.TargetPosition, 0, len(current))
	for _, c := range current {
		targets = append(targets, model.TargetPosition{Symbol: c.Symbol, TargetValue: c.SignedMarketValue()})
	}

	intents, err := Plan(targets, current, DefaultDeMinimis)
	require.NoError(t, err)
	assert.Empty(t, intents)
}
