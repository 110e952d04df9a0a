package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/externalmodel"
	"portfolioexecutor/src/model"
)

const (
	SizingEqual     = "equal"
	SizingScore     = "score"
	SizingConsensus = "consensus"

	defaultLookback = 24 * time.Hour
)

// SignalSource reads raw signal rows for one strategy, newest first.
type SignalSource interface {
	FindSince(ctx context.Context, strategy string, since time.Time, limit int) ([]externalmodel.TradingSignal, error)
}

// SignalCounter is implemented by sources that can count rows without
// fetching them.
type SignalCounter interface {
	CountSince(ctx context.Context, strategy string, since time.Time) (int64, error)
}

// ErrNoFreshSignals is returned when RequireFresh is set and the strategy has
// written nothing inside the lookback window.
var ErrNoFreshSignals = errors.New("no signals inside lookback window")

// SignalTableParams configures a SignalTableProducer.
type SignalTableParams struct {
	Lookback     time.Duration   `yaml:"lookback"`
	Sizing       string          `yaml:"sizing"`
	MaxPositions int             `yaml:"max_positions"`
	AllowShort   *bool           `yaml:"allow_short"`
	MinScore     decimal.Decimal `yaml:"min_score"`
	Limit        int             `yaml:"limit"`
	// RequireFresh fails the producer when the signal writer has gone quiet,
	// rather than reporting an empty window as a cash target.
	RequireFresh bool `yaml:"require_fresh"`
}

func (p *SignalTableParams) normalize() error {
	if p.Lookback <= 0 {
		p.Lookback = defaultLookback
	}
	switch p.Sizing {
	case "":
		p.Sizing = SizingScore
	case SizingEqual, SizingScore, SizingConsensus:
	default:
		return fmt.Errorf("unknown sizing %q", p.Sizing)
	}
	if p.MaxPositions < 0 {
		return fmt.Errorf("max_positions must not be negative")
	}
	if p.MinScore.IsNegative() {
		return fmt.Errorf("min_score must not be negative")
	}
	return nil
}

func (p SignalTableParams) allowShort() bool {
	return p.AllowShort == nil || *p.AllowShort
}

// SignalTableProducer turns the latest rows of the shared signal table into
// dollar-sized target positions.
type SignalTableProducer struct {
	name   string
	weight decimal.Decimal
	params SignalTableParams
	source SignalSource
	now    func() time.Time
	log    *logrus.Entry
}

func NewSignalTableProducer(name string, weight decimal.Decimal, params SignalTableParams, source SignalSource, now func() time.Time) (*SignalTableProducer, error) {
	if source == nil {
		return nil, fmt.Errorf("strategy %s: signal source is required", name)
	}
	if err := params.normalize(); err != nil {
		return nil, fmt.Errorf("strategy %s: %w", name, err)
	}
	if now == nil {
		now = time.Now
	}
	return &SignalTableProducer{
		name:   name,
		weight: weight,
		params: params,
		source: source,
		now:    now,
		log:    logrus.WithFields(logrus.Fields{"component": "SignalTableProducer", "strategy": name}),
	}, nil
}

func (p *SignalTableProducer) Name() string            { return p.name }
func (p *SignalTableProducer) Weight() decimal.Decimal { return p.weight }

type candidate struct {
	signal  model.TradingSignal
	sources map[string]struct{}
}

func (p *SignalTableProducer) Generate(ctx context.Context, totalEquity decimal.Decimal) (*Output, error) {
	budget, err := budgetFor(totalEquity, p.weight)
	if err != nil {
		return nil, err
	}

	since := p.now().UTC().Add(-p.params.Lookback)
	if err := p.checkFresh(ctx, since); err != nil {
		return nil, err
	}
	rows, err := p.source.FindSince(ctx, p.name, since, p.params.Limit)
	if err != nil {
		return nil, fmt.Errorf("read signals: %w", err)
	}

	stats := map[string]any{
		"signals_read": len(rows),
		"sizing":       p.params.Sizing,
		"budget":       budget.StringFixed(2),
	}

	byName := make(map[string]*candidate)
	order := make([]*candidate, 0)
	for _, row := range rows {
		sig := ToSignal(row)
		if sig.Symbol == "" {
			continue
		}
		c, ok := byName[sig.Symbol]
		if !ok {
			// rows are newest first, the first one wins
			c = &candidate{signal: sig, sources: make(map[string]struct{})}
			byName[sig.Symbol] = c
			order = append(order, c)
		}
		c.sources[sig.Source] = struct{}{}
	}

	droppedShort, droppedScore := 0, 0
	kept := make([]*candidate, 0, len(order))
	for _, c := range order {
		score := c.signal.Score
		if score.IsZero() || score.Abs().LessThan(p.params.MinScore) {
			droppedScore++
			continue
		}
		if score.IsNegative() && !p.params.allowShort() {
			droppedShort++
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].signal.Score.Abs(), kept[j].signal.Score.Abs()
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return kept[i].signal.Symbol < kept[j].signal.Symbol
	})
	if p.params.MaxPositions > 0 && len(kept) > p.params.MaxPositions {
		kept = kept[:p.params.MaxPositions]
	}

	symbols := make([]string, len(kept))
	weights := make([]decimal.Decimal, len(kept))
	negative := make([]bool, len(kept))
	for i, c := range kept {
		symbols[i] = c.signal.Symbol
		negative[i] = c.signal.Score.IsNegative()
		switch p.params.Sizing {
		case SizingEqual:
			weights[i] = decimal.NewFromInt(1)
		case SizingConsensus:
			weights[i] = c.signal.Score.Abs().Mul(decimal.NewFromInt(int64(len(c.sources))))
		default:
			weights[i] = c.signal.Score.Abs()
		}
	}

	positions := sizeByWeights(p.name, budget, symbols, weights, negative)

	stats["candidates"] = len(positions)
	stats["dropped_short"] = droppedShort
	stats["dropped_score"] = droppedScore
	stats["gross"] = model.GrossExposure(positions).StringFixed(2)

	p.log.WithFields(logrus.Fields(stats)).Info("signals sized")

	return &Output{Positions: positions, Stats: stats}, nil
}

func (p *SignalTableProducer) checkFresh(ctx context.Context, since time.Time) error {
	if !p.params.RequireFresh {
		return nil
	}
	counter, ok := p.source.(SignalCounter)
	if !ok {
		return nil
	}
	count, err := counter.CountSince(ctx, p.name, since)
	if err != nil {
		return fmt.Errorf("count signals: %w", err)
	}
	if count == 0 {
		p.log.WithField("since", since).Warn("no fresh signals")
		return ErrNoFreshSignals
	}
	return nil
}

// ToSignal converts a signal table row into the in-run signal type.
func ToSignal(row externalmodel.TradingSignal) model.TradingSignal {
	sig := model.TradingSignal{
		Symbol:       model.NormalizeSymbol(row.Symbol),
		StrategyName: row.StrategyName,
		Score:        row.Score,
		Source:       row.Source,
		GeneratedAt:  row.GeneratedAt,
	}
	if sig.Source == "" {
		sig.Source = row.StrategyName
	}
	if len(row.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(row.Metadata, &meta); err == nil {
			sig.Metadata = meta
		}
	}
	return sig
}
