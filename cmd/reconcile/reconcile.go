package reconcile

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/executors"
	"portfolioexecutor/src/repository"
)

// Reconciler keeps the order audit log in step with broker fills.
type Reconciler struct {
	Poll bool
	Once bool
}

func (t *Reconciler) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logrus.WithField("cmd", "reconcile")
	setup := executors.NewSetup(log)
	defer setup.Unwind()

	if err := executors.OpenMainDB(setup); err != nil {
		return err
	}
	brokerCfg, err := executors.BrokerConfig()
	if err != nil {
		return err
	}
	store := repository.NewOrderRecordRepository()

	if t.Poll {
		return t.poll(ctx, log, store, connectors.NewBrokerClient(brokerCfg))
	}

	log.Info("following broker trade updates")
	err = connectors.NewTradeUpdateStream(brokerCfg).Run(ctx, executors.TradeUpdateRecorder(store))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (t *Reconciler) poll(ctx context.Context, log *logrus.Entry, store executors.FillStore, broker executors.OrderGetter) error {
	cfg := GetConfig()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := executors.PollOpenOrders(ctx, store, broker, cfg.PollBatch); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.WithError(err).Error("poll failed")
		}
		if t.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			log.Info("reconcile stopped")
			return nil
		case <-ticker.C:
		}
	}
}
