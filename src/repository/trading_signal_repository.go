// repository/trading_signal_repository.go
package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolioexecutor/src/database"
	"portfolioexecutor/src/externalmodel"
)

// TradingSignalRepository handles read-only operations
// for strategy signals stored in the read-only database.
type TradingSignalRepository struct {
	db *gorm.DB
}

// NewTradingSignalRepository creates a new repository instance.
// It uses the ReadOnlyDB connection by default.
func NewTradingSignalRepository() *TradingSignalRepository {
	logger.WithField("component", "TradingSignalRepository").
		Info("Creating new TradingSignalRepository with ReadOnlyDB")

	return &TradingSignalRepository{
		db: database.ReadOnlyDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions (even if read-only).
func (r *TradingSignalRepository) WithDB(db *gorm.DB) *TradingSignalRepository {
	logger.WithField("component", "TradingSignalRepository").
		Debug("Creating new TradingSignalRepository with custom DB instance")

	return &TradingSignalRepository{db: db}
}

// FindSince returns every signal of one strategy generated at or after since,
// ordered from newest to oldest.
func (r *TradingSignalRepository) FindSince(
	ctx context.Context,
	strategy string,
	since time.Time,
	limit int,
) ([]externalmodel.TradingSignal, error) {

	if limit <= 0 {
		limit = 1000 // default safety limit
	}

	fields := map[string]interface{}{
		"repo":     "TradingSignalRepository",
		"op":       "FindSince",
		"strategy": strategy,
		"since":    since,
		"limit":    limit,
	}
	logger.WithFields(fields).Debug("Fetching trading signals by strategy")

	var rows []externalmodel.TradingSignal

	err := r.db.WithContext(ctx).
		Where("strategy_name = ? AND generated_at >= ?", strategy, since).
		Order("generated_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error

	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to fetch trading signals by strategy")
		return nil, err
	}

	logger.WithFields(fields).
		WithField("rows_return", len(rows)).
		Info("Trading signals by strategy fetched")

	return rows, nil
}

// CountSince returns how many signals a strategy produced at or after since.
// Used as a cheap freshness check before the heavier fetch.
func (r *TradingSignalRepository) CountSince(
	ctx context.Context,
	strategy string,
	since time.Time,
) (int64, error) {

	var count int64

	err := r.db.WithContext(ctx).
		Model(&externalmodel.TradingSignal{}).
		Where("strategy_name = ? AND generated_at >= ?", strategy, since).
		Count(&count).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradingSignalRepository",
			"op":       "CountSince",
			"strategy": strategy,
		}).WithError(err).Error("Failed to count trading signals")

		return 0, err
	}

	return count, nil
}
