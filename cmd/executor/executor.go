package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/executors"
	"portfolioexecutor/src/model"
	"portfolioexecutor/src/rebalance"
	"portfolioexecutor/src/registry"
	"portfolioexecutor/src/repository"
)

// Executor runs the portfolio engine once from the command line.
type Executor struct {
	ConfigPath string
	DryRun     bool
	Out        io.Writer
}

func (t *Executor) out() io.Writer {
	if t.Out == nil {
		return os.Stdout
	}
	return t.Out
}

func (t *Executor) settings() executors.Config {
	cfg := executors.GetConfig()
	if t.ConfigPath != "" {
		cfg.StrategyConfigPath = t.ConfigPath
	}
	cfg.DryRun = cfg.DryRun || t.DryRun
	return cfg
}

func (t *Executor) runContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, GetConfig().RunTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newRunner opens the databases and builds the runner. Everything it opened
// is released by setup.Unwind.
func (t *Executor) newRunner(ctx context.Context, setup *executors.Setup, cfg executors.Config) (*executors.Runner, error) {
	if err := executors.OpenMainDB(setup); err != nil {
		return nil, err
	}
	if err := executors.OpenReadOnlyDB(setup); err != nil {
		return nil, err
	}

	live, err := executors.NewLiveBroker()
	if err != nil {
		return nil, err
	}

	var broker connectors.Broker = live
	var recorder rebalance.Recorder = repository.NewOrderRecordRepository()
	if cfg.DryRun {
		paper, err := executors.NewDryRunBroker(ctx, live)
		if err != nil {
			return nil, err
		}
		broker = paper
		recorder = executors.LogRecorder{Log: logrus.WithField("cmd", "rebalance")}
		logrus.Warn("dry run: orders go to a paper copy of the live account")
	}

	return executors.NewRunner(cfg, executors.Deps{
		Broker:     broker,
		Registry:   registry.New(repository.NewBlockedAssetRepository(), registry.WithTTL(cfg.BlockTTL)),
		Recorder:   recorder,
		Signals:    repository.NewTradingSignalRepository(),
		Exceptions: repository.NewExceptionRepository(),
	}), nil
}

// Start runs one rebalance and prints the run result as JSON.
func (t *Executor) Start() error {
	ctx, cancel := t.runContext()
	defer cancel()

	cfg := t.settings()
	setup := executors.NewSetup(logrus.WithField("cmd", "rebalance"))
	defer setup.Unwind()

	runner, err := t.newRunner(ctx, setup, cfg)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(t.out())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Plan prints the orders a rebalance would place right now.
func (t *Executor) Plan() error {
	ctx, cancel := t.runContext()
	defer cancel()

	cfg := t.settings()
	setup := executors.NewSetup(logrus.WithField("cmd", "plan"))
	defer setup.Unwind()

	runner, err := t.newRunner(ctx, setup, cfg)
	if err != nil {
		return err
	}

	res, intents, err := runner.Plan(ctx)
	if err != nil {
		return err
	}
	return PrintPlan(t.out(), res, intents)
}

// Sweep purges expired blocked assets.
func (t *Executor) Sweep() error {
	ctx, cancel := t.runContext()
	defer cancel()

	setup := executors.NewSetup(logrus.WithField("cmd", "sweep"))
	defer setup.Unwind()
	if err := executors.OpenMainDB(setup); err != nil {
		return err
	}

	removed, err := registry.New(repository.NewBlockedAssetRepository()).SweepExpired(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(t.out(), "removed %d expired blocked assets\n", removed)
	return err
}

// PrintPlan renders a plan as an aligned table.
func PrintPlan(w io.Writer, res *model.RunResult, intents []model.OrderIntent) error {
	if res != nil && res.Status == model.RunStatusSkipped {
		_, err := fmt.Fprintf(w, "run skipped: %s\n", res.SkipReason)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tKIND\tSIDE\tSYMBOL\tCURRENT\tTARGET\tNOTIONAL")
	for _, i := range intents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i.Phase, i.Kind, i.Side, i.Symbol,
			i.Current.StringFixed(2), i.Target.StringFixed(2), i.Notional.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if res != nil {
		_, err := fmt.Fprintf(w, "\nequity %s, %d targets, %d orders, %d filtered out\n",
			res.TotalEquity.StringFixed(2), len(res.Targets), len(intents), res.Filter.Removed())
		return err
	}
	return nil
}
