// Package config loads the per-run allocation settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"portfolioexecutor/src/model"
)

const (
	MergePolicyAdditive = "additive"
	MergePolicyMax      = "max"

	StrategyTypeSignalTable = "signal_table"
	StrategyTypeStatic      = "static"
)

// StrategyConfig is the per-strategy block of the run file. Params is decoded
// later by the producer that owns it.
type StrategyConfig struct {
	Enabled bool            `yaml:"enabled"`
	Weight  decimal.Decimal `yaml:"weight"`
	Type    string          `yaml:"type"`
	Params  yaml.Node       `yaml:"params"`
}

// DecodeParams decodes the params block into out. An absent block leaves out untouched.
func (s StrategyConfig) DecodeParams(out interface{}) error {
	if s.Params.Kind == 0 {
		return nil
	}
	return s.Params.Decode(out)
}

// RunConfig is the global allocation and risk configuration for one run.
type RunConfig struct {
	MergePolicy           string                    `yaml:"merge_policy"`
	MinPositionValue      decimal.Decimal           `yaml:"min_position_value"`
	MaxPositionPct        decimal.Decimal           `yaml:"max_position_pct"`
	MaxPositions          int                       `yaml:"max_positions"`
	RedistributeTruncated *bool                     `yaml:"redistribute_truncated"`
	Strategies            map[string]StrategyConfig `yaml:"strategies"`
}

// Redistribute reports whether truncated exposure is handed back to the kept
// positions. Defaults to true.
func (c RunConfig) Redistribute() bool {
	return c.RedistributeTruncated == nil || *c.RedistributeTruncated
}

// EnabledStrategies returns the enabled strategy names in lexical order.
func (c RunConfig) EnabledStrategies() []string {
	names := make([]string, 0, len(c.Strategies))
	for name, s := range c.Strategies {
		if s.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LoadRunConfig reads and validates a YAML run file.
func LoadRunConfig(path string) (*RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewConfigError("path", fmt.Errorf("read %s: %w", path, err))
	}
	return ParseRunConfig(raw)
}

// ParseRunConfig decodes and validates YAML content.
func ParseRunConfig(raw []byte) (*RunConfig, error) {
	var cfg RunConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, model.NewConfigError("yaml", err)
	}
	cfg.MergePolicy = strings.ToLower(strings.TrimSpace(cfg.MergePolicy))
	if cfg.MergePolicy == "" {
		cfg.MergePolicy = MergePolicyAdditive
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns a *model.ConfigError describing the first invalid field.
func (c RunConfig) Validate() error {
	switch c.MergePolicy {
	case MergePolicyAdditive, MergePolicyMax:
	default:
		return model.NewConfigError("merge_policy", fmt.Errorf("%w: %q", model.ErrUnknownMergePolicy, c.MergePolicy))
	}

	if c.MinPositionValue.IsNegative() {
		return model.NewConfigError("min_position_value", fmt.Errorf("%w: must not be negative", model.ErrInvalidLimits))
	}
	if !c.MaxPositionPct.IsPositive() || c.MaxPositionPct.GreaterThan(decimal.NewFromInt(1)) {
		return model.NewConfigError("max_position_pct", fmt.Errorf("%w: must be in (0, 1]", model.ErrInvalidLimits))
	}
	if c.MaxPositions <= 0 {
		return model.NewConfigError("max_positions", fmt.Errorf("%w: must be positive", model.ErrInvalidLimits))
	}

	if len(c.EnabledStrategies()) == 0 {
		return model.NewConfigError("strategies", errors.New("no enabled strategy"))
	}

	for name, s := range c.Strategies {
		field := "strategies." + name
		if s.Weight.IsNegative() || s.Weight.GreaterThan(decimal.NewFromInt(1)) {
			return model.NewConfigError(field+".weight", errors.New("weight must be in [0, 1]"))
		}
		switch s.Type {
		case StrategyTypeSignalTable, StrategyTypeStatic:
		default:
			return model.NewConfigError(field+".type", fmt.Errorf("unknown strategy type %q", s.Type))
		}
	}

	return nil
}
