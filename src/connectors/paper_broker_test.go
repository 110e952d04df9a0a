package connectors

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/model"
)

func TestPaperBrokerBuySellClose(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(decimal.NewFromInt(10000))
	b.SetPrice("AAPL", decimal.RequireFromString("187.25"))

	ack, err := b.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Notional: decimal.NewNullDecimal(decimal.NewFromInt(1000))})
	require.NoError(t, err)
	assert.Equal(t, model.OrderRecordStatusFilled, ack.Status)

	positions, err := b.CurrentPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].MarketValue.Equal(decimal.NewFromInt(1000)), positions[0].MarketValue.String())

	_, err = b.PlaceOrder(ctx, OrderRequest{Symbol: "AAPL", Side: model.SideSell, Notional: decimal.NewNullDecimal(decimal.NewFromInt(400))})
	require.NoError(t, err)
	positions, err = b.CurrentPositions(ctx)
	require.NoError(t, err)
	assert.True(t, positions[0].MarketValue.Equal(decimal.NewFromInt(600)), positions[0].MarketValue.String())

	_, err = b.ClosePosition(ctx, "AAPL")
	require.NoError(t, err)
	positions, err = b.CurrentPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	account, err := b.Account(ctx)
	require.NoError(t, err)
	assert.True(t, account.Equity.Equal(decimal.NewFromInt(10000)), account.Equity.String())

	assert.Equal(t, []string{"buy AAPL", "sell AAPL", "close AAPL"}, b.Calls())
}

func TestPaperBrokerRejections(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(decimal.NewFromInt(100))

	_, err := b.PlaceOrder(ctx, OrderRequest{Symbol: "MSFT", Side: model.SideBuy, Notional: decimal.NewNullDecimal(decimal.NewFromInt(500))})
	assert.Equal(t, ErrorKindInsufficientBuyingPower, KindOf(err))

	b.Reject("REGN", NewBrokerError(422, 42210000, "asset REGN is not active"))
	_, err = b.ClosePosition(ctx, "REGN")
	assert.Equal(t, ErrorKindAssetNotActive, KindOf(err))

	_, err = b.ClosePosition(ctx, "NONE")
	assert.Equal(t, ErrorKindOther, KindOf(err))
}

func TestPaperBrokerSeedAndDuplicateClientID(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(decimal.NewFromInt(5000))
	b.Seed([]model.CurrentPosition{
		{Symbol: "AAPL", Qty: decimal.NewFromInt(10), MarketValue: decimal.NewFromInt(1500), Side: "long"},
		{Symbol: "TSLA", Qty: decimal.NewFromInt(-2), MarketValue: decimal.NewFromInt(-400), Side: "short"},
	})

	positions, err := b.CurrentPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].MarketValue.Equal(decimal.NewFromInt(1500)))
	assert.True(t, positions[1].SignedMarketValue().Equal(decimal.NewFromInt(-400)))

	req := OrderRequest{Symbol: "AAPL", Side: model.SideBuy, Notional: decimal.NewNullDecimal(decimal.NewFromInt(150)), ClientOrderID: "dup"}
	first, err := b.PlaceOrder(ctx, req)
	require.NoError(t, err)
	second, err := b.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := b.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
}
