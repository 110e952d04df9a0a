package rebalance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/model"
)

// Blocker records symbols the broker refuses to trade.
type Blocker interface {
	Block(ctx context.Context, symbol, reason string) (*model.BlockedAsset, error)
}

// Recorder persists the audit row of an acknowledged order.
type Recorder interface {
	Create(ctx context.Context, record *model.OrderRecord) error
}

// Engine executes the diff between a target portfolio and the live account.
type Engine struct {
	broker    connectors.Broker
	blocker   Blocker
	recorder  Recorder
	deMinimis decimal.Decimal
	now       func() time.Time
	log       *logrus.Entry
}

// Option customizes an Engine.
type Option func(*Engine)

func WithDeMinimis(v decimal.Decimal) Option {
	return func(e *Engine) { e.deMinimis = v }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func NewEngine(broker connectors.Broker, blocker Blocker, recorder Recorder, opts ...Option) *Engine {
	e := &Engine{
		broker:    broker,
		blocker:   blocker,
		recorder:  recorder,
		deMinimis: DefaultDeMinimis,
		now:       time.Now,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "RebalanceEngine")
	return e
}

// Preview fetches current holdings and returns the orders Rebalance would
// attempt, without trading.
func (e *Engine) Preview(ctx context.Context, targets []model.TargetPosition) ([]model.OrderIntent, error) {
	current, err := e.broker.CurrentPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch current positions: %w", err)
	}
	return Plan(targets, current, e.deMinimis)
}

// Rebalance moves the account to targets. An empty targets slice liquidates
// everything. Per-order broker failures never abort the batch: each one ends
// up as a skipped outcome. An error is returned only when the current
// positions cannot be read or the targets are invalid.
func (e *Engine) Rebalance(ctx context.Context, runID string, targets []model.TargetPosition) ([]model.OrderOutcome, error) {
	log := e.log.WithField("run_id", runID)

	intents, err := e.Preview(ctx, targets)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"targets": len(targets),
		"orders":  len(intents),
	}).Info("rebalance planned")

	outcomes := make([]model.OrderOutcome, 0, len(intents))
	for _, intent := range intents {
		if ctxErr := ctx.Err(); ctxErr != nil {
			outcomes = append(outcomes, model.OrderOutcome{
				Intent:     intent,
				Status:     model.OutcomeSkipped,
				SkipReason: ctxErr.Error(),
			})
			continue
		}
		outcomes = append(outcomes, e.execute(ctx, log, runID, intent))
	}

	return outcomes, nil
}

func (e *Engine) execute(ctx context.Context, log *logrus.Entry, runID string, intent model.OrderIntent) model.OrderOutcome {
	log = log.WithFields(logrus.Fields{
		"symbol":   intent.Symbol,
		"kind":     intent.Kind,
		"side":     intent.Side,
		"notional": intent.Notional.StringFixed(2),
		"phase":    intent.Phase.String(),
	})

	var (
		ack *connectors.OrderAck
		err error
	)
	if intent.Kind == model.OrderKindClose {
		ack, err = e.broker.ClosePosition(ctx, intent.Symbol)
	} else {
		ack, err = e.broker.PlaceOrder(ctx, connectors.OrderRequest{
			Symbol:        intent.Symbol,
			Side:          intent.Side,
			Notional:      decimal.NewNullDecimal(intent.Notional),
			ClientOrderID: clientOrderID(runID),
		})
	}

	if err != nil {
		return e.skip(ctx, log, intent, err)
	}

	outcome := model.OrderOutcome{
		Intent:        intent,
		Status:        model.OutcomePlaced,
		BrokerOrderID: ack.ID,
		BrokerStatus:  ack.Status,
	}
	log.WithField("broker_order_id", ack.ID).Info("order placed")

	record := e.recordFor(runID, intent, ack)
	if recErr := e.recorder.Create(ctx, record); recErr != nil {
		log.WithError(recErr).WithField("broker_order_id", ack.ID).Error("failed to persist order record")
	} else {
		outcome.Recorded = true
	}
	return outcome
}

func (e *Engine) skip(ctx context.Context, log *logrus.Entry, intent model.OrderIntent, err error) model.OrderOutcome {
	outcome := model.OrderOutcome{Intent: intent, Status: model.OutcomeSkipped}

	switch connectors.KindOf(err) {
	case connectors.ErrorKindAssetNotActive:
		outcome.SkipReason = model.SkipReasonAssetNotActive
		if _, blockErr := e.blocker.Block(ctx, intent.Symbol, err.Error()); blockErr != nil {
			log.WithError(blockErr).Error("failed to block symbol")
		}
	case connectors.ErrorKindInsufficientBuyingPower:
		outcome.SkipReason = model.SkipReasonInsufficientBuyingPower
	default:
		outcome.SkipReason = err.Error()
	}

	log.WithError(err).WithField("reason", outcome.SkipReason).Warn("order skipped")
	return outcome
}

func (e *Engine) recordFor(runID string, intent model.OrderIntent, ack *connectors.OrderAck) *model.OrderRecord {
	submittedAt := ack.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = e.now()
	}
	status := ack.Status
	if status == "" {
		status = model.OrderRecordStatusNew
	}

	record := &model.OrderRecord{
		RunID:         runID,
		BrokerOrderID: ack.ID,
		ClientOrderID: ack.ClientOrderID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Kind:          string(intent.Kind),
		Status:        status,
		SubmittedAt:   submittedAt.UTC(),
		FilledPrice:   ack.FilledAvgPrice,
	}
	if ack.FilledAt != nil {
		filledAt := ack.FilledAt.UTC()
		record.FilledAt = &filledAt
	}

	// closes are sized by quantity, everything else by notional
	if intent.Kind == model.OrderKindClose {
		record.Qty = ack.Qty
		if !record.Qty.Valid {
			record.Notional = decimal.NewNullDecimal(intent.Notional)
		}
	} else {
		record.Notional = decimal.NewNullDecimal(intent.Notional)
	}
	return record
}

func clientOrderID(runID string) string {
	id := uuid.NewString()
	if runID == "" {
		return id
	}
	prefix := runID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return prefix + "-" + id
}
