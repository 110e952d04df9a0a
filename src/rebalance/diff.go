// Package rebalance moves a live account from its current holdings to a
// target portfolio with the fewest orders.
package rebalance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"portfolioexecutor/src/model"
)

// DefaultDeMinimis is the smallest adjustment, in dollars, worth an order.
var DefaultDeMinimis = decimal.NewFromInt(1)

// Plan diffs targets against current holdings. The result holds every
// reduce-phase order before any increase-phase order, each phase by symbol.
// Symbols held but absent from targets, or targeted at zero, are closed.
func Plan(targets []model.TargetPosition, current []model.CurrentPosition, deMinimis decimal.Decimal) ([]model.OrderIntent, error) {
	if deMinimis.IsNegative() {
		return nil, fmt.Errorf("de minimis threshold must not be negative")
	}

	want := make(map[string]decimal.Decimal, len(targets))
	for _, t := range targets {
		symbol := model.NormalizeSymbol(t.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("target with empty symbol")
		}
		if _, dup := want[symbol]; dup {
			return nil, fmt.Errorf("duplicate target for %s", symbol)
		}
		want[symbol] = t.TargetValue
	}

	have := make(map[string]decimal.Decimal, len(current))
	for _, c := range current {
		symbol := model.NormalizeSymbol(c.Symbol)
		if symbol == "" {
			continue
		}
		have[symbol] = have[symbol].Add(c.SignedMarketValue())
	}

	intents := make([]model.OrderIntent, 0, len(want)+len(have))

	for symbol, mv := range have {
		target, ok := want[symbol]
		if !ok || target.IsZero() {
			intents = append(intents, closeIntent(symbol, mv))
			continue
		}
		if intent, ok := adjustIntent(symbol, mv, target, deMinimis); ok {
			intents = append(intents, intent)
		}
	}

	for symbol, target := range want {
		if _, held := have[symbol]; held || target.IsZero() {
			continue
		}
		intents = append(intents, openIntent(symbol, target))
	}

	sort.SliceStable(intents, func(i, j int) bool {
		if intents[i].Phase != intents[j].Phase {
			return intents[i].Phase < intents[j].Phase
		}
		return intents[i].Symbol < intents[j].Symbol
	})
	return intents, nil
}

func closeIntent(symbol string, mv decimal.Decimal) model.OrderIntent {
	side := model.SideSell
	if mv.IsNegative() {
		side = model.SideBuy
	}
	return model.OrderIntent{
		Symbol:   symbol,
		Kind:     model.OrderKindClose,
		Side:     side,
		Phase:    model.PhaseReduce,
		Notional: mv.Abs().Round(2),
		Current:  mv,
		Target:   decimal.Zero,
	}
}

func openIntent(symbol string, target decimal.Decimal) model.OrderIntent {
	side := model.SideBuy
	if target.IsNegative() {
		side = model.SideSell
	}
	return model.OrderIntent{
		Symbol:   symbol,
		Kind:     model.OrderKindOpen,
		Side:     side,
		Phase:    phaseFor(model.OrderKindOpen, side),
		Notional: target.Abs().Round(2),
		Current:  decimal.Zero,
		Target:   target,
	}
}

// adjustIntent returns false when |target - current| is below deMinimis.
// A delta exactly at the threshold trades.
func adjustIntent(symbol string, mv, target, deMinimis decimal.Decimal) (model.OrderIntent, bool) {
	delta := target.Sub(mv)
	if delta.Abs().LessThan(deMinimis) || delta.IsZero() {
		return model.OrderIntent{}, false
	}

	side := model.SideBuy
	if delta.IsNegative() {
		side = model.SideSell
	}

	kind := model.OrderKindIncrease
	if sameSign(mv, target) && target.Abs().LessThan(mv.Abs()) {
		kind = model.OrderKindReduce
	}

	return model.OrderIntent{
		Symbol:   symbol,
		Kind:     kind,
		Side:     side,
		Phase:    phaseFor(kind, side),
		Notional: delta.Abs().Round(2),
		Current:  mv,
		Target:   target,
	}, true
}

// phaseFor puts everything that frees cash, every sell included, in the
// reduce phase.
func phaseFor(kind model.OrderKind, side string) model.Phase {
	if kind == model.OrderKindClose || kind == model.OrderKindReduce || side == model.SideSell {
		return model.PhaseReduce
	}
	return model.PhaseIncrease
}

func sameSign(a, b decimal.Decimal) bool {
	return a.Sign() != 0 && a.Sign() == b.Sign()
}
