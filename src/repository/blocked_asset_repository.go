package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolioexecutor/src/database"
	"portfolioexecutor/src/model"
)

// BlockedAssetRepository persists the blocked asset registry.
type BlockedAssetRepository struct {
	db *gorm.DB
}

// NewBlockedAssetRepository creates a new repository instance using the main read/write database.
func NewBlockedAssetRepository() *BlockedAssetRepository {
	return &BlockedAssetRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BlockedAssetRepository) WithDB(db *gorm.DB) *BlockedAssetRepository {
	return &BlockedAssetRepository{db: db}
}

// Upsert inserts the row or, when the symbol already exists, refreshes its
// reason and timestamps.
func (r *BlockedAssetRepository) Upsert(
	ctx context.Context,
	asset *model.BlockedAsset,
) error {

	entry := logger.WithFields(map[string]interface{}{
		"repo":       "BlockedAssetRepository",
		"op":         "Upsert",
		"symbol":     asset.Symbol,
		"expires_at": asset.ExpiresAt,
	})

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "blocked_at", "expires_at", "updated_at"}),
	}).Create(asset).Error

	if err != nil {
		entry.WithError(err).Error("Failed to upsert blocked asset")
		return err
	}

	entry.Info("Blocked asset upserted")
	return nil
}

// ListActive returns rows with expires_at after now, ordered by symbol.
func (r *BlockedAssetRepository) ListActive(
	ctx context.Context,
	now time.Time,
) ([]model.BlockedAsset, error) {

	var assets []model.BlockedAsset
	err := r.db.WithContext(ctx).
		Where("expires_at > ?", now).
		Order("symbol ASC").
		Find(&assets).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BlockedAssetRepository",
			"op":   "ListActive",
		}).WithError(err).Error("Failed to list active blocked assets")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "BlockedAssetRepository",
		"op":          "ListActive",
		"rows_return": len(assets),
	}).Debug("Active blocked assets fetched")

	return assets, nil
}

// DeleteExpired removes rows with expires_at at or before now and returns how
// many were removed.
func (r *BlockedAssetRepository) DeleteExpired(
	ctx context.Context,
	now time.Time,
) (int64, error) {

	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.BlockedAsset{})

	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "BlockedAssetRepository",
			"op":   "DeleteExpired",
		}).WithError(result.Error).Error("Failed to delete expired blocked assets")

		return 0, result.Error
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "BlockedAssetRepository",
		"op":      "DeleteExpired",
		"deleted": result.RowsAffected,
	}).Info("Expired blocked assets removed")

	return result.RowsAffected, nil
}
