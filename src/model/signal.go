package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingSignal is one symbol-level opinion emitted by a strategy during a run.
// Signals are ephemeral and never persisted by this service.
type TradingSignal struct {
	Symbol       string
	StrategyName string
	Score        decimal.Decimal
	Source       string
	GeneratedAt  time.Time
	Metadata     map[string]any
}

// StrategyResult is what one enabled strategy contributed to a run.
// TotalEquity is the single account snapshot every strategy was sized against.
type StrategyResult struct {
	Strategy    string
	Weight      decimal.Decimal
	TotalEquity decimal.Decimal
	Budget      decimal.Decimal
	Positions   []TargetPosition
	Stats       map[string]any
}

// StrategyBudget returns total_equity × weight.
func StrategyBudget(totalEquity, weight decimal.Decimal) decimal.Decimal {
	return totalEquity.Mul(weight)
}
