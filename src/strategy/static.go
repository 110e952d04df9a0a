package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"portfolioexecutor/src/model"
)

// StaticParams maps symbols to a fraction of the strategy budget. Negative
// fractions are shorts.
type StaticParams struct {
	Targets map[string]decimal.Decimal `yaml:"targets"`
}

// StaticProducer holds a fixed allocation, e.g. a core ETF sleeve.
type StaticProducer struct {
	name    string
	weight  decimal.Decimal
	symbols []string
	weights []decimal.Decimal
	neg     []bool
}

// NewStaticProducer validates the targets. When the absolute fractions sum to
// more than one they are scaled down to fit the budget.
func NewStaticProducer(name string, weight decimal.Decimal, params StaticParams) (*StaticProducer, error) {
	p := &StaticProducer{name: name, weight: weight}

	symbols := make([]string, 0, len(params.Targets))
	fractions := make(map[string]decimal.Decimal, len(params.Targets))
	total := decimal.Zero
	for raw, frac := range params.Targets {
		symbol := model.NormalizeSymbol(raw)
		if symbol == "" {
			return nil, fmt.Errorf("strategy %s: empty symbol in targets", name)
		}
		if _, dup := fractions[symbol]; dup {
			return nil, fmt.Errorf("strategy %s: duplicate symbol %s", name, symbol)
		}
		if frac.IsZero() {
			continue
		}
		fractions[symbol] = frac
		symbols = append(symbols, symbol)
		total = total.Add(frac.Abs())
	}
	sort.Strings(symbols)

	one := decimal.NewFromInt(1)
	for _, s := range symbols {
		w := fractions[s].Abs()
		if total.GreaterThan(one) {
			w = w.Div(total)
		}
		p.symbols = append(p.symbols, s)
		p.weights = append(p.weights, w)
		p.neg = append(p.neg, fractions[s].IsNegative())
	}
	return p, nil
}

func (p *StaticProducer) Name() string            { return p.name }
func (p *StaticProducer) Weight() decimal.Decimal { return p.weight }

func (p *StaticProducer) Generate(_ context.Context, totalEquity decimal.Decimal) (*Output, error) {
	budget, err := budgetFor(totalEquity, p.weight)
	if err != nil {
		return nil, err
	}

	positions := make([]model.TargetPosition, 0, len(p.symbols))
	for i, s := range p.symbols {
		value := budget.Mul(p.weights[i]).Truncate(2)
		if value.IsZero() {
			continue
		}
		if p.neg[i] {
			value = value.Neg()
		}
		positions = append(positions, model.TargetPosition{
			Symbol:              s,
			AssetClass:          model.AssetClassUSEquity,
			TargetValue:         value,
			ContributingSources: []string{p.name},
		})
	}

	return &Output{
		Positions: positions,
		Stats: map[string]any{
			"targets": len(positions),
			"budget":  budget.StringFixed(2),
		},
	}, nil
}
