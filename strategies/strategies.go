// Package strategies builds the configured signal generator.
package strategies

import (
	"cryptobacktest/internal/config"
	"cryptobacktest/internal/engine"
	"cryptobacktest/strategies/crossover"
	"cryptobacktest/strategies/diptop"
	"cryptobacktest/strategies/phasestop"
)

// Names lists the accepted values of strategy.name.
var Names = []string{
	config.StrategyDipTop,
	config.StrategyMCA,
	config.StrategyMCAGuarded,
	config.StrategyMCADynamicStopLoss,
}

// New returns the generator selected by cfg.Name. Constructor errors are returned as is,
// never alongside a typed nil strategy.
func New(cfg config.Strategy) (engine.Strategy, error) {
	switch cfg.Name {
	case config.StrategyDipTop:
		s, err := diptop.New(cfg.DipTop)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StrategyMCA:
		s, err := crossover.NewBasic(cfg.MCA)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StrategyMCAGuarded:
		s, err := crossover.NewGuarded(cfg.MCAGuarded)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StrategyMCADynamicStopLoss:
		s, err := phasestop.New(cfg.MCADynamicStopLoss)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, &config.ConfigError{Param: "strategy.name", Value: cfg.Name, Reason: "unknown strategy"}
	}
}
