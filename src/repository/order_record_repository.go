package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolioexecutor/src/database"
	"portfolioexecutor/src/model"
)

// OrderRecordRepository handles the append-only order audit log.
type OrderRecordRepository struct {
	db *gorm.DB
}

// NewOrderRecordRepository creates a new repository instance using the main read/write database.
func NewOrderRecordRepository() *OrderRecordRepository {
	logger.WithField("component", "OrderRecordRepository").
		Info("Creating new OrderRecordRepository with MainDB")

	return &OrderRecordRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRecordRepository) WithDB(db *gorm.DB) *OrderRecordRepository {
	logger.WithField("component", "OrderRecordRepository").
		Debug("Creating OrderRecordRepository with custom DB instance")

	return &OrderRecordRepository{db: db}
}

// Create inserts a new audit row.
// The given record will be updated with the generated ID and timestamps.
func (r *OrderRecordRepository) Create(
	ctx context.Context,
	record *model.OrderRecord,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRecordRepository",
		"op":              "Create",
		"run_id":          record.RunID,
		"broker_order_id": record.BrokerOrderID,
		"symbol":          record.Symbol,
		"side":            record.Side,
	}).Debug("Creating order record")

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":            "OrderRecordRepository",
			"op":              "Create",
			"broker_order_id": record.BrokerOrderID,
		}).WithError(err).Error("Failed to create order record")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRecordRepository",
		"op":              "Create",
		"id":              record.ID,
		"broker_order_id": record.BrokerOrderID,
	}).Info("Order record created successfully")

	return nil
}

// FindByBrokerOrderID fetches a record by the broker's order id.
// Returns (nil, nil) if it is not found.
func (r *OrderRecordRepository) FindByBrokerOrderID(
	ctx context.Context,
	brokerOrderID string,
) (*model.OrderRecord, error) {

	var record model.OrderRecord

	err := r.db.WithContext(ctx).
		Where("broker_order_id = ?", brokerOrderID).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":            "OrderRecordRepository",
				"op":              "FindByBrokerOrderID",
				"broker_order_id": brokerOrderID,
			}).Info("Order record not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":            "OrderRecordRepository",
			"op":              "FindByBrokerOrderID",
			"broker_order_id": brokerOrderID,
		}).WithError(err).Error("Failed to fetch order record")

		return nil, err
	}

	return &record, nil
}

// ApplyFill moves a record forward with the latest broker status. Price and
// fill time are only written when present. Terminal records are left alone
// and reported as not updated.
func (r *OrderRecordRepository) ApplyFill(
	ctx context.Context,
	brokerOrderID string,
	status string,
	filledAt *time.Time,
	filledPrice decimal.NullDecimal,
) (bool, error) {

	entry := logger.WithFields(map[string]interface{}{
		"repo":            "OrderRecordRepository",
		"op":              "ApplyFill",
		"broker_order_id": brokerOrderID,
		"status":          status,
	})

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if filledAt != nil {
		updates["filled_at"] = filledAt.UTC()
	}
	if filledPrice.Valid {
		updates["filled_price"] = filledPrice
	}

	result := r.db.WithContext(ctx).
		Model(&model.OrderRecord{}).
		Where("broker_order_id = ? AND status NOT IN ?", brokerOrderID, model.TerminalOrderStatuses).
		Updates(updates)

	if result.Error != nil {
		entry.WithError(result.Error).Error("Failed to apply fill to order record")
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		entry.Debug("No open order record matched the fill")
		return false, nil
	}

	entry.Info("Order record updated from broker")
	return true, nil
}

// OrderRecordSearch defines the filters accepted by Search. Zero values are ignored.
type OrderRecordSearch struct {
	Symbol string
	RunID  string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Search returns audit rows newest first.
func (r *OrderRecordRepository) Search(
	ctx context.Context,
	opts OrderRecordSearch,
) ([]model.OrderRecord, error) {

	query := r.db.WithContext(ctx).Model(&model.OrderRecord{})

	if opts.Symbol != "" {
		query = query.Where("symbol = ?", model.NormalizeSymbol(opts.Symbol))
	}
	if opts.RunID != "" {
		query = query.Where("run_id = ?", opts.RunID)
	}
	if opts.From != nil {
		query = query.Where("submitted_at >= ?", *opts.From)
	}
	if opts.To != nil {
		query = query.Where("submitted_at <= ?", *opts.To)
	}

	query = query.Order("submitted_at DESC, id DESC")

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var records []model.OrderRecord
	if err := query.Find(&records).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "OrderRecordRepository",
			"op":     "Search",
			"symbol": opts.Symbol,
			"run_id": opts.RunID,
		}).WithError(err).Error("Failed to search order records")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRecordRepository",
		"op":          "Search",
		"rows_return": len(records),
	}).Debug("Order records fetched")

	return records, nil
}

// ListOpen returns every record whose status can still change, oldest first.
func (r *OrderRecordRepository) ListOpen(
	ctx context.Context,
	limit int,
) ([]model.OrderRecord, error) {

	if limit <= 0 {
		limit = 500
	}

	var records []model.OrderRecord
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", model.TerminalOrderStatuses).
		Order("submitted_at ASC, id ASC").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRecordRepository",
			"op":    "ListOpen",
			"limit": limit,
		}).WithError(err).Error("Failed to list open order records")

		return nil, err
	}

	return records, nil
}
