package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portfolioexecutor/src/model"
)

var defaultPaperPrice = decimal.NewFromInt(100)

type paperHolding struct {
	qty   decimal.Decimal
	price decimal.Decimal
}

// PaperBroker is an in-memory Broker that fills every accepted market order
// immediately at the symbol's last known price.
type PaperBroker struct {
	mu         sync.Mutex
	cash       decimal.Decimal
	holdings   map[string]*paperHolding
	prices     map[string]decimal.Decimal
	rejections map[string]error
	orders     map[string]*OrderAck
	byClientID map[string]string
	calls      []string
	now        func() time.Time
}

// NewPaperBroker starts with the given cash and no holdings.
func NewPaperBroker(cash decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		cash:       cash,
		holdings:   make(map[string]*paperHolding),
		prices:     make(map[string]decimal.Decimal),
		rejections: make(map[string]error),
		orders:     make(map[string]*OrderAck),
		byClientID: make(map[string]string),
		now:        time.Now,
	}
}

// Seed replaces holdings with a broker snapshot. Prices are derived from
// market value over quantity.
func (b *PaperBroker) Seed(positions []model.CurrentPosition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.holdings = make(map[string]*paperHolding, len(positions))
	for _, p := range positions {
		symbol := model.NormalizeSymbol(p.Symbol)
		qty := p.Qty.Abs()
		if p.SignedMarketValue().IsNegative() {
			qty = qty.Neg()
		}
		price := defaultPaperPrice
		if !qty.IsZero() {
			price = p.MarketValue.Abs().DivRound(qty.Abs(), 6)
		}
		b.holdings[symbol] = &paperHolding{qty: qty, price: price}
		b.prices[symbol] = price
	}
}

// SetPrice sets the fill price for symbol and marks any holding to it.
func (b *PaperBroker) SetPrice(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbol = model.NormalizeSymbol(symbol)
	b.prices[symbol] = price
	if h, ok := b.holdings[symbol]; ok {
		h.price = price
	}
}

// Reject makes every order on symbol fail with err until cleared with a nil err.
func (b *PaperBroker) Reject(symbol string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbol = model.NormalizeSymbol(symbol)
	if err == nil {
		delete(b.rejections, symbol)
		return
	}
	b.rejections[symbol] = err
}

// Calls returns the trading calls made so far, e.g. "close AAPL", "sell MSFT".
func (b *PaperBroker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *PaperBroker) Account(ctx context.Context) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for _, h := range b.holdings {
		equity = equity.Add(h.qty.Mul(h.price).Round(2))
	}
	return &Account{
		ID:          "paper",
		Status:      "ACTIVE",
		Equity:      equity,
		Cash:        b.cash,
		BuyingPower: decimal.Max(b.cash, decimal.Zero),
	}, nil
}

func (b *PaperBroker) CurrentPositions(ctx context.Context) ([]model.CurrentPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make([]model.CurrentPosition, 0, len(b.holdings))
	for symbol, h := range b.holdings {
		side := model.PositionSideLong
		if h.qty.IsNegative() {
			side = model.PositionSideShort
		}
		positions = append(positions, model.CurrentPosition{
			Symbol:      symbol,
			Qty:         h.qty,
			MarketValue: h.qty.Mul(h.price).Round(2),
			Side:        side,
		})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Notional.Valid == req.Qty.Valid {
		return nil, fmt.Errorf("order for %s must set exactly one of notional or qty", req.Symbol)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	symbol := model.NormalizeSymbol(req.Symbol)
	b.calls = append(b.calls, req.Side+" "+symbol)

	if id, ok := b.byClientID[req.ClientOrderID]; ok && req.ClientOrderID != "" {
		ack := *b.orders[id]
		return &ack, nil
	}
	if err := b.rejections[symbol]; err != nil {
		return nil, err
	}

	price := b.priceLocked(symbol)
	var qty, notional decimal.Decimal
	if req.Notional.Valid {
		notional = req.Notional.Decimal
		qty = notional.DivRound(price, 9)
	} else {
		qty = req.Qty.Decimal.Abs()
		notional = qty.Mul(price).Round(2)
	}
	if !qty.IsPositive() {
		return nil, NewBrokerError(422, 40010000, "qty must be > 0")
	}

	signed := qty
	if req.Side == model.SideBuy {
		if notional.GreaterThan(b.cash) {
			return nil, NewBrokerError(403, codeInsufficientBuyingPower, "insufficient buying power")
		}
		b.cash = b.cash.Sub(notional)
	} else {
		signed = qty.Neg()
		b.cash = b.cash.Add(notional)
	}

	h, ok := b.holdings[symbol]
	if !ok {
		h = &paperHolding{qty: decimal.Zero, price: price}
		b.holdings[symbol] = h
	}
	h.qty = h.qty.Add(signed)
	b.prices[symbol] = price
	if h.qty.Abs().LessThan(decimal.New(1, -9)) {
		delete(b.holdings, symbol)
	}

	return b.fillLocked(symbol, req.Side, req.ClientOrderID, qty, req.Notional, price), nil
}

func (b *PaperBroker) ClosePosition(ctx context.Context, symbol string) (*OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	symbol = model.NormalizeSymbol(symbol)
	b.calls = append(b.calls, "close "+symbol)

	if err := b.rejections[symbol]; err != nil {
		return nil, err
	}
	h, ok := b.holdings[symbol]
	if !ok {
		return nil, NewBrokerError(404, 40410000, "position does not exist")
	}

	side := model.SideSell
	if h.qty.IsNegative() {
		side = model.SideBuy
	}
	b.cash = b.cash.Add(h.qty.Mul(h.price).Round(2))
	b.prices[symbol] = h.price
	delete(b.holdings, symbol)

	return b.fillLocked(symbol, side, "", h.qty.Abs(), decimal.NullDecimal{}, h.price), nil
}

func (b *PaperBroker) GetOrder(ctx context.Context, orderID string) (*OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ack, ok := b.orders[orderID]
	if !ok {
		return nil, NewBrokerError(404, 40410000, "order not found")
	}
	cp := *ack
	return &cp, nil
}

func (b *PaperBroker) priceLocked(symbol string) decimal.Decimal {
	if h, ok := b.holdings[symbol]; ok && h.price.IsPositive() {
		return h.price
	}
	if p, ok := b.prices[symbol]; ok && p.IsPositive() {
		return p
	}
	return defaultPaperPrice
}

func (b *PaperBroker) fillLocked(symbol, side, clientOrderID string, qty decimal.Decimal, notional decimal.NullDecimal, price decimal.Decimal) *OrderAck {
	now := b.now().UTC()
	ack := &OrderAck{
		ID:             uuid.NewString(),
		ClientOrderID:  clientOrderID,
		Symbol:         symbol,
		Side:           side,
		Status:         model.OrderRecordStatusFilled,
		Notional:       notional,
		Qty:            decimal.NewNullDecimal(qty),
		FilledQty:      decimal.NewNullDecimal(qty),
		FilledAvgPrice: decimal.NewNullDecimal(price),
		SubmittedAt:    now,
		FilledAt:       &now,
	}
	b.orders[ack.ID] = ack
	if clientOrderID != "" {
		b.byClientID[clientOrderID] = ack.ID
	}

	cp := *ack
	return &cp
}
