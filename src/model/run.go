package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus distinguishes a completed run (possibly with zero orders) from a
// run that was intentionally not executed. A failed run is reported through
// the returned error, never through a status.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
)

// FilterReport carries the per-stage counts of the position filter.
type FilterReport struct {
	Input           int             `json:"input"`
	RemovedBlocked  int             `json:"removed_blocked"`
	RemovedBelowMin int             `json:"removed_below_min"`
	Capped          int             `json:"capped"`
	RemovedTruncate int             `json:"removed_truncate"`
	Output          int             `json:"output"`
	Redistributed   decimal.Decimal `json:"redistributed"`
	Warning         bool            `json:"warning"`
}

// Removed is the total number of candidates removed by every stage.
func (r FilterReport) Removed() int {
	return r.RemovedBlocked + r.RemovedBelowMin + r.RemovedTruncate
}

// RunResult is the structured result every run returns.
type RunResult struct {
	RunID          string              `json:"run_id"`
	Status         RunStatus           `json:"status"`
	SkipReason     string              `json:"skip_reason,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
	TotalEquity    decimal.Decimal     `json:"total_equity"`
	Strategies     []StrategyResult    `json:"-"`
	StrategyErrors []StrategyDataError `json:"strategy_errors,omitempty"`
	Filter         FilterReport        `json:"filter"`
	Targets        []TargetPosition    `json:"targets"`
	Orders         []OrderOutcome      `json:"orders_placed"`
}

// Placed counts outcomes that reached the broker successfully.
func (r *RunResult) Placed() int {
	n := 0
	for _, o := range r.Orders {
		if o.Status == OutcomePlaced {
			n++
		}
	}
	return n
}

// Skipped counts outcomes that were not executed.
func (r *RunResult) Skipped() int {
	return len(r.Orders) - r.Placed()
}
