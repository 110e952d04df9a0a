// Package registry keeps the symbols the broker recently refused to trade.
package registry

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/model"
)

// DefaultTTL is how long a symbol stays blocked after a rejection.
const DefaultTTL = 7 * 24 * time.Hour

// Store is the persistence behind the registry.
type Store interface {
	Upsert(ctx context.Context, asset *model.BlockedAsset) error
	ListActive(ctx context.Context, now time.Time) ([]model.BlockedAsset, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Registry is a keyed-expiry store of untradeable symbols.
type Registry struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   *logger.Entry
}

// Option customizes a Registry.
type Option func(*Registry)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Registry on top of store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
		log:   logger.WithField("component", "BlockedAssetRegistry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the block duration in use.
func (r *Registry) TTL() time.Duration { return r.ttl }

// Block marks symbol untradeable until now+TTL. Blocking an already blocked
// symbol refreshes its expiry.
func (r *Registry) Block(ctx context.Context, symbol, reason string) (*model.BlockedAsset, error) {
	symbol = model.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("block: empty symbol")
	}

	now := r.now().UTC()
	asset := &model.BlockedAsset{
		Symbol:    symbol,
		Reason:    truncateReason(reason),
		BlockedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	if err := r.store.Upsert(ctx, asset); err != nil {
		return nil, fmt.Errorf("block %s: %w", symbol, err)
	}

	r.log.WithFields(logger.Fields{
		"symbol":     symbol,
		"reason":     asset.Reason,
		"expires_at": asset.ExpiresAt,
	}).Warn("symbol blocked")

	return asset, nil
}

// ActiveSymbols returns the set of symbols blocked right now.
func (r *Registry) ActiveSymbols(ctx context.Context) (model.SymbolSet, error) {
	assets, err := r.store.ListActive(ctx, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list active blocked assets: %w", err)
	}

	set := make(model.SymbolSet, len(assets))
	for _, a := range assets {
		set[model.NormalizeSymbol(a.Symbol)] = struct{}{}
	}
	return set, nil
}

// Active returns the active rows, for reporting.
func (r *Registry) Active(ctx context.Context) ([]model.BlockedAsset, error) {
	return r.store.ListActive(ctx, r.now().UTC())
}

// SweepExpired deletes rows whose expiry has passed and returns how many went.
func (r *Registry) SweepExpired(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteExpired(ctx, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired blocked assets: %w", err)
	}
	r.log.WithField("removed", n).Info("expired blocked assets swept")
	return n, nil
}

func truncateReason(reason string) string {
	const max = 255
	if len(reason) <= max {
		return reason
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
