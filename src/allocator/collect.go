package allocator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
	"portfolioexecutor/src/strategy"
)

// budgetTolerance lets a producer overshoot its budget by 1% from rounding.
var budgetTolerance = decimal.RequireFromString("1.01")

// Collect runs every producer once, sequentially, against the same equity
// snapshot. A producer that fails or returns malformed output contributes
// nothing and is reported as a StrategyDataError. Missing equity is the only
// error that stops the run.
func Collect(ctx context.Context, producers []strategy.Producer, totalEquity decimal.Decimal) ([]model.StrategyResult, []model.StrategyDataError, error) {
	if !totalEquity.IsPositive() {
		return nil, nil, model.NewConfigError("total_equity", model.ErrMissingEquity)
	}

	log := logrus.WithField("component", "Collect")
	results := make([]model.StrategyResult, 0, len(producers))
	var dataErrs []model.StrategyDataError

	for _, p := range producers {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		budget := model.StrategyBudget(totalEquity, p.Weight())
		out, err := p.Generate(ctx, totalEquity)
		if err == nil {
			err = validateOutput(out, budget)
		}
		if err != nil {
			if errors.Is(err, strategy.ErrInvalidEquity) {
				return nil, nil, model.NewConfigError("total_equity", fmt.Errorf("%w: %v", model.ErrMissingEquity, err))
			}
			log.WithError(err).WithField("strategy", p.Name()).Warn("strategy dropped for this run")
			dataErrs = append(dataErrs, model.StrategyDataError{Strategy: p.Name(), Message: err.Error(), Err: err})
			results = append(results, model.StrategyResult{
				Strategy:    p.Name(),
				Weight:      p.Weight(),
				TotalEquity: totalEquity,
				Budget:      budget,
			})
			continue
		}

		results = append(results, model.StrategyResult{
			Strategy:    p.Name(),
			Weight:      p.Weight(),
			TotalEquity: totalEquity,
			Budget:      budget,
			Positions:   out.Positions,
			Stats:       out.Stats,
		})
		log.WithFields(logrus.Fields{
			"strategy":  p.Name(),
			"positions": len(out.Positions),
			"budget":    budget.StringFixed(2),
		}).Info("strategy generated")
	}

	return results, dataErrs, nil
}

func validateOutput(out *strategy.Output, budget decimal.Decimal) error {
	if out == nil {
		return errors.New("producer returned no output")
	}
	seen := make(map[string]bool, len(out.Positions))
	for _, p := range out.Positions {
		symbol := model.NormalizeSymbol(p.Symbol)
		if symbol == "" {
			return errors.New("position with empty symbol")
		}
		if seen[symbol] {
			return fmt.Errorf("duplicate symbol %s", symbol)
		}
		seen[symbol] = true
	}
	gross := model.GrossExposure(out.Positions)
	if gross.GreaterThan(budget.Mul(budgetTolerance)) {
		return fmt.Errorf("gross exposure %s exceeds budget %s", gross.StringFixed(2), budget.StringFixed(2))
	}
	return nil
}
