package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"portfolioexecutor/cmd/executor"
	"portfolioexecutor/cmd/keys"
	"portfolioexecutor/cmd/reconcile"
	"portfolioexecutor/src/database"
	"portfolioexecutor/src/executors"
	"portfolioexecutor/src/server"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Portfolio Executor CMD"
	app.Usage = "Blend strategy signals into one portfolio and rebalance the broker account"
	app.Version = Version
	app.Before = func(_ *cli.Context) error {
		setupLogger()
		return nil
	}

	app.Commands = []cli.Command{
		rebalanceCMD,
		planCMD,
		sweepCMD,
		reconcileCMD,
		serveCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() {
	config := database.GetConfig()

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

var (
	configFlag = cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to the strategy YAML file",
		EnvVar: "STRATEGY_CONFIG_PATH",
	}
	dryRunFlag = cli.BoolFlag{
		Name:  "dry-run",
		Usage: "execute against a paper copy of the live account",
	}

	rebalanceCMD = cli.Command{
		Name:        "rebalance",
		Usage:       "run one rebalance",
		Action:      rebalanceAction,
		Flags:       []cli.Flag{configFlag, dryRunFlag},
		Description: `Fetch equity, run every enabled strategy, filter and rebalance the account`,
	}
	planCMD = cli.Command{
		Name:        "plan",
		Usage:       "print the orders a rebalance would place",
		Action:      planAction,
		Flags:       []cli.Flag{configFlag},
		Description: `Compute targets and orders without trading`,
	}
	sweepCMD = cli.Command{
		Name:        "sweep",
		Usage:       "purge expired blocked assets",
		Action:      sweepAction,
		Description: `Delete blocked asset rows whose expiry has passed`,
	}
	reconcileCMD = cli.Command{
		Name:   "reconcile",
		Usage:  "record broker fills in the order audit log",
		Action: reconcileAction,
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "poll", Usage: "poll open orders instead of streaming trade updates"},
			cli.BoolFlag{Name: "once", Usage: "with --poll, run a single pass and exit"},
		},
		Description: `Follow the broker trade update stream, or poll open orders, and apply fills`,
	}
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "serve the audit HTTP API",
		Action:      serveAction,
		Description: `Expose /orders, /blocked and /healthcheck`,
	}
	keysCMD = cli.Command{
		Name:        "keys",
		Usage:       "encrypt broker credentials read from stdin",
		Action:      keysAction,
		Description: `Print one enc: value per input line`,
	}
)

func rebalanceAction(c *cli.Context) error {
	logrus.WithField("cmd", "rebalance").Info("Starting rebalance CMD")

	ex := &executor.Executor{ConfigPath: c.String("config"), DryRun: c.Bool("dry-run")}
	if err := ex.Start(); err != nil {
		logrus.WithError(err).Error("rebalance failed")
		return err
	}
	return nil
}

func planAction(c *cli.Context) error {
	ex := &executor.Executor{ConfigPath: c.String("config")}
	if err := ex.Plan(); err != nil {
		logrus.WithError(err).Error("plan failed")
		return err
	}
	return nil
}

func sweepAction(_ *cli.Context) error {
	ex := &executor.Executor{}
	return ex.Sweep()
}

func reconcileAction(c *cli.Context) error {
	logrus.WithField("cmd", "reconcile").Info("Starting reconcile CMD")

	r := &reconcile.Reconciler{Poll: c.Bool("poll"), Once: c.Bool("once")}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("reconcile failed")
		return err
	}
	return nil
}

func serveAction(_ *cli.Context) error {
	setup := executors.NewSetup(logrus.WithField("cmd", "serve"))
	defer setup.Unwind()

	if err := executors.OpenMainDB(setup); err != nil {
		return err
	}
	return server.StartServer(context.Background(), server.GetConfig(), server.DefaultHandlers())
}

func keysAction(_ *cli.Context) error {
	return keys.Encrypt(os.Stdin, os.Stdout)
}
