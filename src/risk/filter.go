// Package risk holds the monetary controls applied between allocation and
// execution, plus the exchange calendar used to gate runs.
package risk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

const (
	StageBlocked  = "blocked"
	StageMinValue = "min_value"
	StageCap      = "cap"
	StageTruncate = "truncate"
)

// removedWarnRatio is the share of removed candidates above which a run is flagged.
var removedWarnRatio = decimal.RequireFromString("0.5")

// Limits are the global risk settings of a run. A zero MaxPositionPct or a
// non-positive MaxPositions disables that stage.
type Limits struct {
	MinPositionValue decimal.Decimal
	MaxPositionPct   decimal.Decimal
	MaxPositions     int
	Redistribute     bool
}

// Cap returns the largest allowed |target_value| for totalEquity, or zero when
// there is no cap.
func (l Limits) Cap(totalEquity decimal.Decimal) decimal.Decimal {
	if !l.MaxPositionPct.IsPositive() {
		return decimal.Zero
	}
	return l.MaxPositionPct.Mul(totalEquity).Truncate(2)
}

// PositionFilter applies the four filter stages in order.
type PositionFilter struct {
	Limits Limits
	Log    *logrus.Entry
}

func NewPositionFilter(limits Limits, log *logrus.Entry) *PositionFilter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PositionFilter{Limits: limits, Log: log.WithField("component", "PositionFilter")}
}

// Apply removes blocked symbols, drops positions below the minimum value,
// clamps to the per-position cap and keeps the top MaxPositions by size.
// The input slice is not modified.
func (f *PositionFilter) Apply(candidates []model.TargetPosition, blocked model.SymbolSet, totalEquity decimal.Decimal) ([]model.TargetPosition, model.FilterReport, error) {
	report := model.FilterReport{Input: len(candidates), Redistributed: decimal.Zero}

	if !totalEquity.IsPositive() {
		return nil, report, model.NewConfigError("total_equity", model.ErrMissingEquity)
	}
	if f.Limits.MinPositionValue.IsNegative() || f.Limits.MaxPositionPct.IsNegative() {
		return nil, report, model.NewConfigError("limits", errors.New("limits must not be negative"))
	}

	positions := make([]model.TargetPosition, 0, len(candidates))

	// 1. blocked
	for _, p := range candidates {
		if blocked.Contains(p.Symbol) {
			report.RemovedBlocked++
			continue
		}
		positions = append(positions, p)
	}
	f.logStage(StageBlocked, report.RemovedBlocked, len(positions))

	// 2. minimum value
	kept := positions[:0]
	for _, p := range positions {
		if p.AbsValue().LessThan(f.Limits.MinPositionValue) {
			report.RemovedBelowMin++
			continue
		}
		kept = append(kept, p)
	}
	positions = kept
	f.logStage(StageMinValue, report.RemovedBelowMin, len(positions))

	// 3. per-position cap
	limit := f.Limits.Cap(totalEquity)
	if limit.IsPositive() {
		for i := range positions {
			if positions[i].AbsValue().GreaterThan(limit) {
				positions[i].TargetValue = withSign(limit, positions[i].TargetValue)
				report.Capped++
			}
		}
	}
	f.logStage(StageCap, report.Capped, len(positions))

	// 4. top-N
	if n := f.Limits.MaxPositions; n > 0 && len(positions) > n {
		grossBefore := model.GrossExposure(positions)

		sort.SliceStable(positions, func(i, j int) bool {
			a, b := positions[i].AbsValue(), positions[j].AbsValue()
			if !a.Equal(b) {
				return a.GreaterThan(b)
			}
			return positions[i].Symbol < positions[j].Symbol
		})
		report.RemovedTruncate = len(positions) - n
		positions = positions[:n]

		if f.Limits.Redistribute {
			report.Redistributed = redistribute(positions, grossBefore, limit)
		}
	}
	f.logStage(StageTruncate, report.RemovedTruncate, len(positions))

	model.SortBySymbol(positions)
	report.Output = len(positions)

	if report.Input > 0 {
		ratio := decimal.NewFromInt(int64(report.Removed())).Div(decimal.NewFromInt(int64(report.Input)))
		if ratio.GreaterThan(removedWarnRatio) {
			report.Warning = true
			f.Log.WithFields(logrus.Fields{
				"input":   report.Input,
				"removed": report.Removed(),
				"output":  report.Output,
			}).Warn(fmt.Sprintf("risk filter removed %s%% of candidates", ratio.Mul(decimal.NewFromInt(100)).StringFixed(1)))
		}
	}

	return positions, report, nil
}

func (f *PositionFilter) logStage(stage string, removed, remaining int) {
	f.Log.WithFields(logrus.Fields{
		"stage":     stage,
		"removed":   removed,
		"remaining": remaining,
	}).Info("risk filter stage")
}

func withSign(abs, like decimal.Decimal) decimal.Decimal {
	if like.IsNegative() {
		return abs.Neg()
	}
	return abs
}

// redistribute hands the exposure dropped by truncation back to the kept
// positions, proportionally to their size, without pushing any above limit.
// It returns the amount added.
func redistribute(positions []model.TargetPosition, target, limit decimal.Decimal) decimal.Decimal {
	added := decimal.Zero
	cent := decimal.New(1, -2)

	for round := 0; round <= len(positions); round++ {
		remaining := target.Sub(model.GrossExposure(positions))
		if remaining.LessThan(cent) {
			break
		}

		free := decimal.Zero
		for _, p := range positions {
			if !limit.IsPositive() || p.AbsValue().LessThan(limit) {
				free = free.Add(p.AbsValue())
			}
		}
		if !free.IsPositive() {
			break
		}

		for i := range positions {
			abs := positions[i].AbsValue()
			if limit.IsPositive() && !abs.LessThan(limit) {
				continue
			}
			next := abs.Add(remaining.Mul(abs).Div(free)).Truncate(2)
			if limit.IsPositive() && next.GreaterThan(limit) {
				next = limit
			}
			added = added.Add(next.Sub(abs))
			positions[i].TargetValue = withSign(next, positions[i].TargetValue)
		}
	}

	return added
}
