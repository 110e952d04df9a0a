package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/allocator"
	"portfolioexecutor/src/config"
	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/rebalance"
	"portfolioexecutor/src/registry"
	"portfolioexecutor/src/risk"
	"portfolioexecutor/src/strategy"
)

// SkipReasonMarketClosed marks runs started on a weekend or exchange holiday.
const SkipReasonMarketClosed = "market_closed"

// Deps are the collaborators of a Runner. Exceptions is optional.
type Deps struct {
	Broker     connectors.Broker
	Registry   *registry.Registry
	Recorder   rebalance.Recorder
	Signals    strategy.SignalSource
	Exceptions ExceptionSink
	LoadConfig func() (*config.RunConfig, error)
	Now        func() time.Time
	Log        *logrus.Entry
}

// Runner executes one full pass: equity snapshot, producers, allocation,
// risk filter and rebalance.
type Runner struct {
	cfg  Config
	deps Deps
	log  *logrus.Entry
}

func NewRunner(cfg Config, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LoadConfig == nil {
		path := cfg.StrategyConfigPath
		deps.LoadConfig = func() (*config.RunConfig, error) { return config.LoadRunConfig(path) }
	}
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{cfg: cfg, deps: deps, log: log.WithField("component", "Runner")}
}

// prepared is everything a run knows once the targets are final.
type prepared struct {
	result *model.RunResult
	engine *rebalance.Engine
	done   bool
}

// Run executes a full rebalance. Errors are returned only for failures that
// happen before the first order; per-order broker failures end up in
// RunResult.Orders.
func (r *Runner) Run(ctx context.Context) (*model.RunResult, error) {
	p, err := r.prepare(ctx, "Run")
	if err != nil || p.done {
		return r.finish(p), err
	}

	orders, err := p.engine.Rebalance(ctx, p.result.RunID, p.result.Targets)
	if err != nil {
		r.capture(ctx, "Run", p.result.RunID, err)
		return nil, err
	}
	p.result.Orders = orders
	p.result.Status = model.RunStatusCompleted

	res := r.finish(p)
	r.log.WithFields(logrus.Fields{
		"run_id":  res.RunID,
		"targets": len(res.Targets),
		"placed":  res.Placed(),
		"skipped": res.Skipped(),
	}).Info("run completed")
	return res, nil
}

// Plan computes the orders a Run would attempt without trading.
func (r *Runner) Plan(ctx context.Context) (*model.RunResult, []model.OrderIntent, error) {
	p, err := r.prepare(ctx, "Plan")
	if err != nil || p.done {
		return r.finish(p), nil, err
	}

	intents, err := p.engine.Preview(ctx, p.result.Targets)
	if err != nil {
		r.capture(ctx, "Plan", p.result.RunID, err)
		return nil, nil, err
	}
	p.result.Status = model.RunStatusCompleted
	return r.finish(p), intents, nil
}

func (r *Runner) finish(p *prepared) *model.RunResult {
	if p == nil || p.result == nil {
		return nil
	}
	p.result.FinishedAt = r.deps.Now().UTC()
	return p.result
}

func (r *Runner) prepare(ctx context.Context, method string) (*prepared, error) {
	runID := uuid.NewString()
	now := r.deps.Now()
	log := r.log.WithField("run_id", runID)

	result := &model.RunResult{RunID: runID, StartedAt: now.UTC()}
	fail := func(err error) (*prepared, error) {
		r.capture(ctx, method, runID, err)
		return nil, err
	}

	runCfg, err := r.deps.LoadConfig()
	if err != nil {
		return fail(err)
	}
	producers, err := strategy.BuildAll(runCfg, strategy.Deps{Signals: r.deps.Signals, Now: r.deps.Now})
	if err != nil {
		return fail(err)
	}
	policy, err := allocator.ParseMergePolicy(runCfg.MergePolicy)
	if err != nil {
		return fail(err)
	}

	if r.cfg.SkipNonTradingDays && !risk.IsTradingDay(now) {
		log.WithField("next_trading_day", risk.NextTradingDay(now).Format("2006-01-02")).Warn("market closed, run skipped")
		result.Status = model.RunStatusSkipped
		result.SkipReason = SkipReasonMarketClosed
		return &prepared{result: result, done: true}, nil
	}

	if swept, err := r.deps.Registry.SweepExpired(ctx); err != nil {
		log.WithError(err).Warn("failed to sweep expired blocked assets")
	} else if swept > 0 {
		log.WithField("swept", swept).Info("expired blocked assets removed")
	}

	account, err := r.deps.Broker.Account(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetch account: %w", err))
	}
	if !account.Equity.IsPositive() {
		return fail(model.NewConfigError("total_equity", model.ErrMissingEquity))
	}
	result.TotalEquity = account.Equity
	log.WithField("equity", account.Equity.StringFixed(2)).Info("equity snapshot taken")

	results, dataErrs, err := allocator.Collect(ctx, producers, account.Equity)
	if err != nil {
		return fail(err)
	}
	result.Strategies = results
	result.StrategyErrors = dataErrs

	candidates, err := allocator.Allocate(results, policy)
	if err != nil {
		return fail(err)
	}

	blocked, err := r.deps.Registry.ActiveSymbols(ctx)
	if err != nil {
		return fail(fmt.Errorf("load blocked assets: %w", err))
	}

	filter := risk.NewPositionFilter(risk.Limits{
		MinPositionValue: runCfg.MinPositionValue,
		MaxPositionPct:   runCfg.MaxPositionPct,
		MaxPositions:     runCfg.MaxPositions,
		Redistribute:     runCfg.Redistribute(),
	}, log)
	targets, report, err := filter.Apply(candidates, blocked, account.Equity)
	if err != nil {
		return fail(err)
	}
	result.Targets = targets
	result.Filter = report

	engine := rebalance.NewEngine(r.deps.Broker, r.deps.Registry, r.deps.Recorder,
		rebalance.WithDeMinimis(r.deMinimis()),
		rebalance.WithClock(r.deps.Now),
		rebalance.WithLogger(log),
	)
	return &prepared{result: result, engine: engine}, nil
}

func (r *Runner) deMinimis() decimal.Decimal {
	if !r.cfg.DeMinimis.IsPositive() {
		return rebalance.DefaultDeMinimis
	}
	return r.cfg.DeMinimis
}

func (r *Runner) capture(ctx context.Context, method, runID string, err error) {
	if errors.Is(err, context.Canceled) {
		r.log.WithField("run_id", runID).Warn("run canceled")
		return
	}
	Capture(ctx, r.deps.Exceptions, r.cfg.ServiceName, "executors", method, runID, err, map[string]interface{}{
		"config_path": r.cfg.StrategyConfigPath,
		"dry_run":     r.cfg.DryRun,
	})
}
