package executors

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/model"
)

// NewDryRunBroker copies the live account into a PaperBroker, so a dry run
// sizes against the real equity and holdings without sending orders.
func NewDryRunBroker(ctx context.Context, live connectors.Broker) (*connectors.PaperBroker, error) {
	account, err := live.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run: fetch account: %w", err)
	}
	positions, err := live.CurrentPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run: fetch positions: %w", err)
	}

	paper := connectors.NewPaperBroker(account.Cash)
	paper.Seed(positions)
	return paper, nil
}

// LogRecorder writes order records to the log instead of the database.
type LogRecorder struct {
	Log *logrus.Entry
}

func (r LogRecorder) Create(_ context.Context, record *model.OrderRecord) error {
	log := r.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.WithFields(logrus.Fields{
		"run_id":          record.RunID,
		"broker_order_id": record.BrokerOrderID,
		"symbol":          record.Symbol,
		"side":            record.Side,
		"kind":            record.Kind,
		"notional":        record.Notional,
		"qty":             record.Qty,
	}).Info("dry run order")
	return nil
}
