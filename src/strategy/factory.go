package strategy

import (
	"fmt"
	"time"

	"portfolioexecutor/src/config"
	"portfolioexecutor/src/model"
)

// Deps are the collaborators producers may need.
type Deps struct {
	Signals SignalSource
	Now     func() time.Time
}

// Build creates the producer described by cfg. Failures are configuration errors.
func Build(name string, cfg config.StrategyConfig, deps Deps) (Producer, error) {
	field := "strategies." + name + ".params"

	switch cfg.Type {
	case config.StrategyTypeSignalTable:
		var params SignalTableParams
		if err := cfg.DecodeParams(&params); err != nil {
			return nil, model.NewConfigError(field, err)
		}
		p, err := NewSignalTableProducer(name, cfg.Weight, params, deps.Signals, deps.Now)
		if err != nil {
			return nil, model.NewConfigError(field, err)
		}
		return p, nil

	case config.StrategyTypeStatic:
		var params StaticParams
		if err := cfg.DecodeParams(&params); err != nil {
			return nil, model.NewConfigError(field, err)
		}
		p, err := NewStaticProducer(name, cfg.Weight, params)
		if err != nil {
			return nil, model.NewConfigError(field, err)
		}
		return p, nil

	default:
		return nil, model.NewConfigError("strategies."+name+".type", fmt.Errorf("unknown strategy type %q", cfg.Type))
	}
}

// BuildAll creates every enabled producer in name order.
func BuildAll(cfg *config.RunConfig, deps Deps) ([]Producer, error) {
	names := cfg.EnabledStrategies()
	producers := make([]Producer, 0, len(names))
	for _, name := range names {
		p, err := Build(name, cfg.Strategies[name], deps)
		if err != nil {
			return nil, err
		}
		producers = append(producers, p)
	}
	return producers, nil
}
