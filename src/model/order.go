package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// OrderKind describes what an order does to the existing holding.
type OrderKind string

const (
	OrderKindClose    OrderKind = "close"
	OrderKindReduce   OrderKind = "reduce"
	OrderKindIncrease OrderKind = "increase"
	OrderKindOpen     OrderKind = "open"
)

// Phase groups orders for execution. Every PhaseReduce order is attempted
// before any PhaseIncrease order.
type Phase int

const (
	PhaseReduce Phase = iota + 1
	PhaseIncrease
)

func (p Phase) String() string {
	switch p {
	case PhaseReduce:
		return "reduce"
	case PhaseIncrease:
		return "increase"
	default:
		return "unknown"
	}
}

// OrderIntent is one planned order produced by diffing target vs current.
type OrderIntent struct {
	Symbol   string          `json:"symbol"`
	Kind     OrderKind       `json:"kind"`
	Side     string          `json:"side"`
	Phase    Phase           `json:"phase"`
	Notional decimal.Decimal `json:"notional"`
	Current  decimal.Decimal `json:"current"`
	Target   decimal.Decimal `json:"target"`
}

func (o OrderIntent) String() string {
	return fmt.Sprintf("%s %s %s $%s", o.Kind, o.Side, o.Symbol, o.Notional.StringFixed(2))
}

// OutcomeStatus tags each attempted order in a run result.
type OutcomeStatus string

const (
	OutcomePlaced  OutcomeStatus = "placed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Skip reasons for broker rejections that have a dedicated meaning.
const (
	SkipReasonAssetNotActive          = "asset_not_active"
	SkipReasonInsufficientBuyingPower = "insufficient_buying_power"
)

// OrderOutcome is the per-order entry of a run result.
type OrderOutcome struct {
	Intent        OrderIntent   `json:"intent"`
	Status        OutcomeStatus `json:"status"`
	SkipReason    string        `json:"skip_reason,omitempty"`
	BrokerOrderID string        `json:"broker_order_id,omitempty"`
	BrokerStatus  string        `json:"broker_status,omitempty"`
	Recorded      bool          `json:"recorded"`
}

// Label renders the outcome as "placed" or "skipped(<reason>)".
func (o OrderOutcome) Label() string {
	if o.Status == OutcomeSkipped {
		return fmt.Sprintf("skipped(%s)", o.SkipReason)
	}
	return string(o.Status)
}
