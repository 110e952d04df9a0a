// Package strategy holds the signal producers a run blends into one portfolio.
package strategy

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"portfolioexecutor/src/model"
)

// ErrInvalidEquity is returned by Generate when total equity is missing or not positive.
var ErrInvalidEquity = errors.New("total equity must be positive")

// Output is what a producer returns for one run.
type Output struct {
	Positions []model.TargetPosition
	Stats     map[string]any
}

// Producer sizes its own candidates within total_equity × Weight.
type Producer interface {
	Name() string
	Weight() decimal.Decimal
	Generate(ctx context.Context, totalEquity decimal.Decimal) (*Output, error)
}

func budgetFor(totalEquity, weight decimal.Decimal) (decimal.Decimal, error) {
	if !totalEquity.IsPositive() {
		return decimal.Zero, ErrInvalidEquity
	}
	return model.StrategyBudget(totalEquity, weight), nil
}

// sizeByWeights splits budget across symbols proportionally to weights and
// applies the sign in signs. Values are truncated to cents so the gross never
// exceeds budget.
func sizeByWeights(source string, budget decimal.Decimal, symbols []string, weights []decimal.Decimal, negative []bool) []model.TargetPosition {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if !total.IsPositive() || !budget.IsPositive() {
		return nil
	}

	positions := make([]model.TargetPosition, 0, len(symbols))
	for i, symbol := range symbols {
		value := budget.Mul(weights[i]).Div(total).Truncate(2)
		if value.IsZero() {
			continue
		}
		if negative[i] {
			value = value.Neg()
		}
		positions = append(positions, model.TargetPosition{
			Symbol:              symbol,
			AssetClass:          model.AssetClassUSEquity,
			TargetValue:         value,
			ContributingSources: []string{source},
		})
	}
	model.SortBySymbol(positions)
	return positions
}
