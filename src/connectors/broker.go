package connectors

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"portfolioexecutor/src/model"
)

// OrderRequest is a market order sized either by notional or by quantity.
type OrderRequest struct {
	Symbol        string
	Side          string
	Notional      decimal.NullDecimal
	Qty           decimal.NullDecimal
	ClientOrderID string
}

// OrderAck is the broker acknowledgment of a submitted order.
type OrderAck struct {
	ID             string              `json:"id"`
	ClientOrderID  string              `json:"client_order_id"`
	Symbol         string              `json:"symbol"`
	Side           string              `json:"side"`
	Status         string              `json:"status"`
	Notional       decimal.NullDecimal `json:"notional"`
	Qty            decimal.NullDecimal `json:"qty"`
	FilledQty      decimal.NullDecimal `json:"filled_qty"`
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
	SubmittedAt    time.Time           `json:"submitted_at"`
	FilledAt       *time.Time          `json:"filled_at"`
}

// Account is the subset of the brokerage account the engine needs.
type Account struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Equity      decimal.Decimal `json:"equity"`
	Cash        decimal.Decimal `json:"cash"`
	BuyingPower decimal.Decimal `json:"buying_power"`
}

// Broker is the trading surface used by a run.
type Broker interface {
	Account(ctx context.Context) (*Account, error)
	CurrentPositions(ctx context.Context) ([]model.CurrentPosition, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderAck, error)
	ClosePosition(ctx context.Context, symbol string) (*OrderAck, error)
	GetOrder(ctx context.Context, orderID string) (*OrderAck, error)
}
