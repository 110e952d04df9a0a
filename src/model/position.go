package model

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	AssetClassUSEquity = "us_equity"

	PositionSideLong  = "long"
	PositionSideShort = "short"
)

// TargetPosition is the desired signed dollar exposure to one symbol.
// Negative values are short exposure.
type TargetPosition struct {
	Symbol              string          `json:"symbol"`
	AssetClass          string          `json:"asset_class"`
	TargetValue         decimal.Decimal `json:"target_value"`
	ContributingSources []string        `json:"contributing_sources,omitempty"`
}

// AbsValue returns |TargetValue|.
func (p TargetPosition) AbsValue() decimal.Decimal {
	return p.TargetValue.Abs()
}

// AddSource appends a contributing source if it is not present yet.
func (p *TargetPosition) AddSource(sources ...string) {
	for _, s := range sources {
		if s == "" {
			continue
		}
		found := false
		for _, existing := range p.ContributingSources {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			p.ContributingSources = append(p.ContributingSources, s)
		}
	}
}

// CurrentPosition is a live holding reported by the broker at the start of a run.
// It is never cached across runs.
type CurrentPosition struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`
	MarketValue decimal.Decimal `json:"market_value"`
	Side        string          `json:"side"`
}

// SignedMarketValue returns the market value with short positions negative,
// whatever sign convention the broker used.
func (p CurrentPosition) SignedMarketValue() decimal.Decimal {
	mv := p.MarketValue.Abs()
	if strings.EqualFold(p.Side, PositionSideShort) || p.Qty.IsNegative() {
		return mv.Neg()
	}
	return mv
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GrossExposure is the sum of absolute target values.
func GrossExposure(positions []TargetPosition) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.AbsValue())
	}
	return total
}

// SortBySymbol sorts positions in place by symbol.
func SortBySymbol(positions []TargetPosition) {
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
}

// SymbolSet is a set of tickers with O(1) membership checks.
type SymbolSet map[string]struct{}

// NewSymbolSet builds a set from the given symbols.
func NewSymbolSet(symbols ...string) SymbolSet {
	set := make(SymbolSet, len(symbols))
	for _, s := range symbols {
		set[NormalizeSymbol(s)] = struct{}{}
	}
	return set
}

// Contains reports whether symbol is in the set.
func (s SymbolSet) Contains(symbol string) bool {
	if s == nil {
		return false
	}
	_, ok := s[NormalizeSymbol(symbol)]
	return ok
}
