// Package allocator blends per-strategy dollar budgets into one candidate portfolio.
package allocator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/config"
	"portfolioexecutor/src/model"
)

// MergePolicy decides how two strategies' positions in the same symbol combine.
type MergePolicy string

const (
	MergeAdditive MergePolicy = config.MergePolicyAdditive
	MergeMax      MergePolicy = config.MergePolicyMax
)

// ParseMergePolicy accepts "additive" or "max" in any case.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MergeAdditive, MergeMax:
		return p, nil
	default:
		return "", model.NewConfigError("merge_policy", fmt.Errorf("%w: %q", model.ErrUnknownMergePolicy, s))
	}
}

// Allocate merges every result's positions per symbol. All results must carry
// the same positive total equity; anything else is a configuration error.
// The output is sorted by symbol.
func Allocate(results []model.StrategyResult, policy MergePolicy) ([]model.TargetPosition, error) {
	policy, err := ParseMergePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	if err := checkEquityBasis(results); err != nil {
		return nil, err
	}

	merged := make(map[string]*model.TargetPosition)
	for _, result := range results {
		for _, pos := range result.Positions {
			symbol := model.NormalizeSymbol(pos.Symbol)
			if symbol == "" {
				continue
			}
			sources := pos.ContributingSources
			if len(sources) == 0 {
				sources = []string{result.Strategy}
			}

			current, ok := merged[symbol]
			if !ok {
				assetClass := pos.AssetClass
				if assetClass == "" {
					assetClass = model.AssetClassUSEquity
				}
				entry := &model.TargetPosition{Symbol: symbol, AssetClass: assetClass, TargetValue: pos.TargetValue}
				entry.AddSource(sources...)
				merged[symbol] = entry
				continue
			}

			switch policy {
			case MergeAdditive:
				current.TargetValue = current.TargetValue.Add(pos.TargetValue)
				current.AddSource(sources...)
			case MergeMax:
				// ties keep the earlier contribution
				if pos.TargetValue.Abs().GreaterThan(current.TargetValue.Abs()) {
					current.TargetValue = pos.TargetValue
					current.ContributingSources = nil
					current.AddSource(sources...)
				}
			}
		}
	}

	out := make([]model.TargetPosition, 0, len(merged))
	for _, p := range merged {
		out = append(out, *p)
	}
	model.SortBySymbol(out)

	logrus.WithFields(logrus.Fields{
		"component":  "Allocator",
		"policy":     policy,
		"strategies": len(results),
		"candidates": len(out),
		"gross":      model.GrossExposure(out).StringFixed(2),
	}).Info("strategies merged")

	return out, nil
}

func checkEquityBasis(results []model.StrategyResult) error {
	var basis decimal.Decimal
	for i, r := range results {
		if !r.TotalEquity.IsPositive() {
			return model.NewConfigError("total_equity", fmt.Errorf("%w: strategy %s", model.ErrMissingEquity, r.Strategy))
		}
		if i == 0 {
			basis = r.TotalEquity
			continue
		}
		if !r.TotalEquity.Equal(basis) {
			return model.NewConfigError("total_equity", fmt.Errorf("%w: %s has %s, expected %s",
				model.ErrEquityBasisMismatch, r.Strategy, r.TotalEquity.String(), basis.String()))
		}
	}
	return nil
}
