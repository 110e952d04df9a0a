package executors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/config"
	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/externalmodel"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/registry"
)

// Tuesday 10:00 in New York.
var tradingDay = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

type stubSignals struct {
	rows []externalmodel.TradingSignal
	err  error
}

func (s *stubSignals) FindSince(_ context.Context, strategy string, _ time.Time, _ int) ([]externalmodel.TradingSignal, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []externalmodel.TradingSignal
	for _, r := range s.rows {
		if r.StrategyName == strategy {
			out = append(out, r)
		}
	}
	return out, nil
}

type memRecorder struct {
	mu      sync.Mutex
	records []*model.OrderRecord
}

func (r *memRecorder) Create(_ context.Context, record *model.OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

type memExceptions struct {
	items []*model.Exception
}

func (m *memExceptions) Create(_ context.Context, exc *model.Exception) error {
	m.items = append(m.items, exc)
	return nil
}

type harness struct {
	broker     *connectors.PaperBroker
	registry   *registry.Registry
	recorder   *memRecorder
	exceptions *memExceptions
	signals    *stubSignals
	runner     *Runner
}

func newHarness(t *testing.T, cash string, yaml string, now time.Time) *harness {
	t.Helper()

	clock := func() time.Time { return now }
	logger, _ := logrustest.NewNullLogger()

	h := &harness{
		broker:     connectors.NewPaperBroker(decimal.RequireFromString(cash)),
		registry:   registry.New(registry.NewMemoryStore(), registry.WithClock(clock)),
		recorder:   &memRecorder{},
		exceptions: &memExceptions{},
		signals:    &stubSignals{},
	}
	h.runner = NewRunner(Config{ServiceName: "test", SkipNonTradingDays: true}, Deps{
		Broker:     h.broker,
		Registry:   h.registry,
		Recorder:   h.recorder,
		Signals:    h.signals,
		Exceptions: h.exceptions,
		LoadConfig: func() (*config.RunConfig, error) { return config.ParseRunConfig([]byte(yaml)) },
		Now:        clock,
		Log:        logrus.NewEntry(logger),
	})
	return h
}

func signalRows(strategy string, n int) []externalmodel.TradingSignal {
	rows := make([]externalmodel.TradingSignal, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, externalmodel.TradingSignal{
			StrategyName: strategy,
			Symbol:       fmt.Sprintf("S%03d", i),
			Score:        decimal.NewFromInt(int64(n - i)),
			Source:       "screener",
			GeneratedAt:  tradingDay.Add(-time.Hour),
		})
	}
	return rows
}

const wideUniverse = `
merge_policy: additive
min_position_value: 100
max_position_pct: 0.10
max_positions: 20
strategies:
  momentum: {enabled: true, weight: 1.0, type: signal_table, params: {sizing: equal}}
`

func TestRunTruncatesWideUniverseAndKeepsBudget(t *testing.T) {
	h := newHarness(t, "100000", wideUniverse, tradingDay)
	h.signals.rows = signalRows("momentum", 435)

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, res.Status)
	assert.True(t, decimal.NewFromInt(100000).Equal(res.TotalEquity))
	require.Len(t, res.Targets, 20)

	gross := model.GrossExposure(res.Targets)
	for _, p := range res.Targets {
		assert.True(t, p.TargetValue.GreaterThanOrEqual(decimal.NewFromInt(100)), p.Symbol)
		assert.True(t, p.TargetValue.LessThanOrEqual(decimal.NewFromInt(10000)), p.Symbol)
	}
	assert.True(t, gross.GreaterThanOrEqual(decimal.NewFromInt(95000)), gross.String())

	assert.Equal(t, 435, res.Filter.Input)
	assert.Equal(t, 415, res.Filter.RemovedTruncate)
	assert.True(t, res.Filter.Warning)

	assert.Equal(t, 20, res.Placed())
	assert.Len(t, h.recorder.records, 20)
	for _, r := range h.recorder.records {
		assert.Equal(t, res.RunID, r.RunID)
	}
}

func TestRunSkipsOnNonTradingDay(t *testing.T) {
	saturday := time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC)
	h := newHarness(t, "100000", wideUniverse, saturday)
	h.signals.rows = signalRows("momentum", 5)

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSkipped, res.Status)
	assert.Equal(t, SkipReasonMarketClosed, res.SkipReason)
	assert.Empty(t, res.Orders)
	assert.Empty(t, h.broker.Calls())
}

func TestRunConfigErrorAbortsBeforeBroker(t *testing.T) {
	h := newHarness(t, "100000", `
merge_policy: average
max_position_pct: 0.1
max_positions: 5
strategies:
  core: {enabled: true, weight: 1, type: static, params: {targets: {SPY: 1}}}
`, tradingDay)

	res, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, model.IsConfigError(err))
	assert.Empty(t, h.broker.Calls())

	require.Len(t, h.exceptions.items, 1)
	assert.Equal(t, "warn", h.exceptions.items[0].Level)
	assert.Equal(t, "Run", h.exceptions.items[0].Method)
	assert.NotEmpty(t, h.exceptions.items[0].RunID)
}

func TestRunMissingEquityIsConfigError(t *testing.T) {
	h := newHarness(t, "0", wideUniverse, tradingDay)

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingEquity))
	assert.Empty(t, h.broker.Calls())
}

const twoStrategies = `
min_position_value: 50
max_position_pct: 0.5
max_positions: 10
strategies:
  momentum: {enabled: true, weight: 0.5, type: signal_table, params: {sizing: equal}}
  core: {enabled: true, weight: 0.5, type: static, params: {targets: {SPY: 0.6, QQQ: 0.4}}}
`

func TestRunDropsFailingStrategyAndContinues(t *testing.T) {
	h := newHarness(t, "10000", twoStrategies, tradingDay)
	h.signals.err = errors.New("relation strategy_signals does not exist")

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.StrategyErrors, 1)
	assert.Equal(t, "momentum", res.StrategyErrors[0].Strategy)

	symbols := []string{}
	for _, p := range res.Targets {
		symbols = append(symbols, p.Symbol)
	}
	assert.ElementsMatch(t, []string{"SPY", "QQQ"}, symbols)
	assert.Equal(t, 2, res.Placed())
}

func TestRunExcludesBlockedSymbols(t *testing.T) {
	h := newHarness(t, "10000", twoStrategies, tradingDay)
	_, err := h.registry.Block(context.Background(), "QQQ", "asset not active")
	require.NoError(t, err)

	res, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Filter.RemovedBlocked)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, "SPY", res.Targets[0].Symbol)
	assert.Equal(t, []string{"buy SPY"}, h.broker.Calls())
}

func TestPlanDoesNotTrade(t *testing.T) {
	h := newHarness(t, "10000", twoStrategies, tradingDay)
	h.broker.Seed([]model.CurrentPosition{{
		Symbol:      "IWM",
		Qty:         decimal.NewFromInt(10),
		MarketValue: decimal.NewFromInt(1000),
		Side:        model.PositionSideLong,
	}})

	res, intents, err := h.runner.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, res.Status)
	assert.Empty(t, res.Orders)
	assert.Empty(t, h.broker.Calls())

	require.NotEmpty(t, intents)
	assert.Equal(t, "IWM", intents[0].Symbol)
	assert.Equal(t, model.OrderKindClose, intents[0].Kind)
}

func TestNewDryRunBrokerMirrorsLiveAccount(t *testing.T) {
	live := connectors.NewPaperBroker(decimal.NewFromInt(500))
	live.Seed([]model.CurrentPosition{{
		Symbol:      "AAPL",
		Qty:         decimal.NewFromInt(2),
		MarketValue: decimal.NewFromInt(300),
		Side:        model.PositionSideLong,
	}})

	paper, err := NewDryRunBroker(context.Background(), live)
	require.NoError(t, err)

	account, err := paper.Account(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(800).Equal(account.Equity))

	_, err = paper.ClosePosition(context.Background(), "AAPL")
	require.NoError(t, err)

	livePositions, err := live.CurrentPositions(context.Background())
	require.NoError(t, err)
	assert.Len(t, livePositions, 1)
}
