package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/model"
)

// FillStore is the part of the order audit log touched by reconciliation.
type FillStore interface {
	FindByBrokerOrderID(ctx context.Context, brokerOrderID string) (*model.OrderRecord, error)
	ApplyFill(ctx context.Context, brokerOrderID, status string, filledAt *time.Time, filledPrice decimal.NullDecimal) (bool, error)
	ListOpen(ctx context.Context, limit int) ([]model.OrderRecord, error)
}

// OrderGetter looks up one broker order.
type OrderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*connectors.OrderAck, error)
}

// TradeUpdateRecorder returns a stream handler that applies each update to
// the audit log. Updates for orders this service did not place, or for rows
// already in a terminal status, are ignored.
func TradeUpdateRecorder(store FillStore) connectors.TradeUpdateHandler {
	log := logrus.WithField("component", "TradeUpdateRecorder")
	return func(ctx context.Context, update connectors.TradeUpdate) error {
		if update.Order.ID == "" {
			return nil
		}
		entry := log.WithFields(logrus.Fields{
			"event":           update.Event,
			"broker_order_id": update.Order.ID,
		})

		rec, err := store.FindByBrokerOrderID(ctx, update.Order.ID)
		if err != nil {
			return fmt.Errorf("find order %s: %w", update.Order.ID, err)
		}
		if rec == nil {
			entry.Debug("trade update for unknown order")
			return nil
		}
		if model.IsTerminalOrderStatus(rec.Status) {
			entry.WithField("status", rec.Status).Debug("order already settled")
			return nil
		}

		filledAt := update.Order.FilledAt
		if filledAt == nil && (update.Event == "fill" || update.Event == "partial_fill") {
			filledAt = update.Timestamp
		}
		price := update.Order.FilledAvgPrice
		if !price.Valid {
			price = update.Price
		}

		updated, err := store.ApplyFill(ctx, update.Order.ID, update.Status(), filledAt, price)
		if err != nil {
			return fmt.Errorf("apply %s for %s: %w", update.Event, update.Order.ID, err)
		}
		entry.WithField("updated", updated).Debug("trade update handled")
		return nil
	}
}

// PollOpenOrders refreshes every non-terminal audit row from the broker and
// returns how many rows changed. A failed lookup is logged and skipped.
func PollOpenOrders(ctx context.Context, store FillStore, broker OrderGetter, limit int) (int, error) {
	log := logrus.WithField("component", "PollOpenOrders")

	records, err := store.ListOpen(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list open order records: %w", err)
	}

	updated := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		ack, err := broker.GetOrder(ctx, rec.BrokerOrderID)
		if err != nil {
			log.WithError(err).WithField("broker_order_id", rec.BrokerOrderID).Warn("failed to fetch order")
			continue
		}
		if ack.Status == "" || ack.Status == rec.Status {
			continue
		}

		ok, err := store.ApplyFill(ctx, rec.BrokerOrderID, ack.Status, ack.FilledAt, ack.FilledAvgPrice)
		if err != nil {
			return updated, fmt.Errorf("apply fill for %s: %w", rec.BrokerOrderID, err)
		}
		if ok {
			updated++
		}
	}

	log.WithFields(logrus.Fields{"open": len(records), "updated": updated}).Info("open orders reconciled")
	return updated, nil
}
